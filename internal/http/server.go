// Package http provides the JSON API server: routing, middleware
// wiring, the response envelope and per-resource handlers.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Deps carries everything the server needs. All fields are required
// except where noted.
type Deps struct {
	Addr                  string
	Issuer                *auth.TokenIssuer
	Auth                  *services.AuthService
	Users                 *services.UserService
	Categories            *services.CategoryService
	Transactions          *services.TransactionService
	Reports               *services.ReportService
	Storage               *storage.SQLiteRepository
	Logger                *log.Logger
	AllowedOrigins        []string
	AuthRequestsPerMinute int
}

type Server struct {
	http.Server

	issuer       *auth.TokenIssuer
	authSvc      *services.AuthService
	users        *services.UserService
	categories   *services.CategoryService
	transactions *services.TransactionService
	reports      *services.ReportService
	storage      *storage.SQLiteRepository
	logger       *log.Logger
	events       *log.StructuredLogger

	detector    *security.Detector
	tracer      *trace.Middleware
	authLimiter *ratelimit.Limiter
	startedAt   time.Time

	shutdownOnce sync.Once
}

// NewServer configures middleware and routes, returning a ready-to-run
// server.
func NewServer(deps Deps) *Server {
	s := &Server{
		issuer:       deps.Issuer,
		authSvc:      deps.Auth,
		users:        deps.Users,
		categories:   deps.Categories,
		transactions: deps.Transactions,
		reports:      deps.Reports,
		storage:      deps.Storage,
		logger:       deps.Logger.WithComponent(log.ComponentHTTP),
		detector:     security.NewDetector(),
		startedAt:    time.Now(),
	}
	s.events = log.NewStructuredLogger(s.logger)

	limit := deps.AuthRequestsPerMinute
	if limit <= 0 {
		limit = ratelimit.DefaultConfig().RequestsPerMinute
	}
	s.authLimiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: limit,
		CleanupInterval:   5 * time.Minute,
	})

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	cors := security.NewCORSMiddleware(deps.AllowedOrigins)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.events)

	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = log.Middleware(s.logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = cors.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.rejectSuspicious(handler)

	s.Server = http.Server{
		Addr:              deps.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	// Auth endpoints are unauthenticated, rate limited and marked
	// non-cacheable since they carry credentials.
	authRoute := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.NoStoreMiddleware(s.limitAuth(h)))
	}
	authRoute("POST /api/v1/auth/register", s.handleRegister)
	authRoute("POST /api/v1/auth/login", s.handleLogin)
	authRoute("POST /api/v1/auth/refresh", s.handleRefresh)
	authRoute("POST /api/v1/auth/logout", s.handleLogout)
	authRoute("POST /api/v1/auth/verify-email", s.handleVerifyEmail)
	authRoute("POST /api/v1/auth/resend-verification", s.handleResendVerification)
	authRoute("POST /api/v1/auth/forgot-password", s.handleForgotPassword)
	authRoute("POST /api/v1/auth/reset-password", s.handleResetPassword)
	authRoute("POST /api/v1/auth/request-otp", s.handleRequestOTP)
	authRoute("POST /api/v1/auth/verify-otp", s.handleVerifyOTP)

	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.requireAuth(h))
	}
	authed("GET /api/v1/users/me", s.handleGetMe)
	authed("PUT /api/v1/users/me/profile", s.handleUpdateProfile)
	authed("PUT /api/v1/users/me/settings", s.handleUpdateSettings)
	authed("PUT /api/v1/users/me/password", s.handleChangePassword)
	authed("DELETE /api/v1/users/me", s.handleDeleteMe)

	authed("POST /api/v1/categories", s.handleCreateCategory)
	authed("GET /api/v1/categories", s.handleListCategories)
	authed("GET /api/v1/categories/hierarchy", s.handleCategoryHierarchy)
	authed("GET /api/v1/categories/{id}", s.handleGetCategory)
	authed("PUT /api/v1/categories/{id}", s.handleUpdateCategory)
	authed("DELETE /api/v1/categories/{id}", s.handleDeleteCategory)

	authed("POST /api/v1/transactions", s.handleCreateTransaction)
	authed("GET /api/v1/transactions", s.handleListTransactions)
	authed("GET /api/v1/transactions/summary", s.handleSummary)
	authed("GET /api/v1/transactions/category-breakdown", s.handleCategoryBreakdown)
	authed("GET /api/v1/transactions/{id}", s.handleGetTransaction)
	authed("PUT /api/v1/transactions/{id}", s.handleUpdateTransaction)
	authed("DELETE /api/v1/transactions/{id}", s.handleDeleteTransaction)
	authed("POST /api/v1/transactions/{id}/clone", s.handleCloneTransaction)
}

// limitAuth applies the per-IP rate limit for credential endpoints.
func (s *Server) limitAuth(next http.HandlerFunc) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, envelope{
			Success: false,
			Error:   codeRateLimited,
			Message: "too many requests, try again later",
		})
	}
	return s.authLimiter.Middleware(s.detector.ExtractClientIP, onLimit)(next)
}

// rejectSuspicious drops requests matching known attack tooling before
// they reach routing.
func (s *Server) rejectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request blocked",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
			writeJSON(w, http.StatusForbidden, envelope{Success: false, Error: codeForbidden, Message: "request rejected"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
