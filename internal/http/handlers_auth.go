package http

import (
	"net/http"
)

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenPayload struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	NewPassword  string `json:"newPassword"`
	Email        string `json:"email"`
	Code         string `json:"code"`
}

// loginResponse is the payload for endpoints that establish a session.
type loginResponse struct {
	User         any    `json:"user,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	user, err := s.authSvc.Register(r.Context(), req.Email, req.Password, sanitizeInput(req.Name))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondDataMessage(w, http.StatusCreated, user, "registered, check your inbox to verify your email")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	user, pair, err := s.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}
	if req.RefreshToken == "" {
		respondBadRequest(w, "refreshToken is required")
		return
	}

	pair, err := s.authSvc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	if err := s.authSvc.Logout(r.Context(), req.RefreshToken); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}
	if req.Token == "" {
		respondBadRequest(w, "token is required")
		return
	}

	if err := s.authSvc.VerifyEmail(r.Context(), req.Token); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "email verified")
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	if err := s.authSvc.ResendVerification(r.Context(), req.Email); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "if the account exists, a verification email was sent")
}

// handleForgotPassword always answers 200 so the endpoint cannot be
// used to enumerate accounts.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	if err := s.authSvc.ForgotPassword(r.Context(), req.Email); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "if the account exists, a reset email was sent")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}
	if req.Token == "" {
		respondBadRequest(w, "token is required")
		return
	}

	if err := s.authSvc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "password updated, log in with your new password")
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	if err := s.authSvc.RequestOTP(r.Context(), req.Email); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "if the account exists, a one-time code was sent")
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}
	if req.Email == "" || req.Code == "" {
		respondBadRequest(w, "email and code are required")
		return
	}

	user, pair, err := s.authSvc.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
