package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type transactionPayload struct {
	CategoryID  int64                `json:"categoryId"`
	Type        core.TransactionType `json:"type"`
	Amount      core.Money           `json:"amount"`
	Description string               `json:"description"`
	Notes       string               `json:"notes"`
	Tags        []string             `json:"tags"`
	Date        string               `json:"date"`
}

func (p transactionPayload) toDomain(userID int64) (core.Transaction, error) {
	t := core.Transaction{
		UserID:      userID,
		CategoryID:  p.CategoryID,
		Type:        p.Type,
		Amount:      p.Amount,
		Description: sanitizeInput(p.Description),
		Notes:       sanitizeInput(p.Notes),
		Tags:        p.Tags,
	}
	if strings.TrimSpace(p.Date) != "" {
		date, err := parseDate(p.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Date = date
	}
	return t, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	t, err := req.toDomain(authUserID(r.Context()))
	if err != nil {
		respondBadRequest(w, "date must be YYYY-MM-DD or RFC 3339")
		return
	}

	created, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.events.LogTransactionWritten(r.Context(), log.OpCreate, created.UserID, created.ID, created.Amount.Cents, created.CategoryID)
	respondData(w, http.StatusCreated, created)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	items, total, err := s.transactions.List(r.Context(), authUserID(r.Context()), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Transaction{}
	}

	respondData(w, http.StatusOK, struct {
		Items      []core.Transaction `json:"items"`
		Pagination pagination         `json:"pagination"`
	}{
		Items:      items,
		Pagination: newPagination(filter.Page, filter.Limit, total),
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondBadRequest(w, "invalid transaction id")
		return
	}

	t, err := s.transactions.Get(r.Context(), authUserID(r.Context()), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondBadRequest(w, "invalid transaction id")
		return
	}

	var req transactionPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	t, err := req.toDomain(authUserID(r.Context()))
	if err != nil {
		respondBadRequest(w, "date must be YYYY-MM-DD or RFC 3339")
		return
	}
	t.ID = id

	updated, err := s.transactions.Update(r.Context(), t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.events.LogTransactionWritten(r.Context(), log.OpUpdate, updated.UserID, updated.ID, updated.Amount.Cents, updated.CategoryID)
	respondData(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondBadRequest(w, "invalid transaction id")
		return
	}

	if err := s.transactions.Delete(r.Context(), authUserID(r.Context()), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "transaction deleted")
}

func (s *Server) handleCloneTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondBadRequest(w, "invalid transaction id")
		return
	}

	var req struct {
		Description string      `json:"description"`
		Amount      *core.Money `json:"amount"`
		Date        *string     `json:"date"`
		Notes       *string     `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	var date *time.Time
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			respondBadRequest(w, "date must be YYYY-MM-DD or RFC 3339")
			return
		}
		date = &d
	}

	clone, err := s.transactions.Clone(r.Context(), authUserID(r.Context()), id,
		sanitizeInput(req.Description), req.Amount, date, req.Notes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.events.LogTransactionWritten(r.Context(), log.OpClone, clone.UserID, clone.ID, clone.Amount.Cents, clone.CategoryID)
	respondData(w, http.StatusCreated, clone)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportRange(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	summary, err := s.reports.Summary(r.Context(), authUserID(r.Context()), from, to)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, summary)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(strings.TrimSpace(r.URL.Query().Get("type")))
	if typ == "" {
		typ = core.TypeExpense
	}
	if !typ.Valid() {
		respondBadRequest(w, "type must be income or expense")
		return
	}

	from, to, err := reportRange(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	rows, err := s.reports.CategoryBreakdown(r.Context(), authUserID(r.Context()), typ, from, to)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, rows)
}

// reportRange resolves the reporting window: explicit startDate/endDate
// win, otherwise year/month (defaulting to the current month).
func reportRange(r *http.Request) (time.Time, time.Time, error) {
	from, hasFrom, err := queryDate(r, "startDate")
	if err != nil {
		return time.Time{}, time.Time{}, errBadDate("startDate")
	}
	to, hasTo, err := queryDate(r, "endDate")
	if err != nil {
		return time.Time{}, time.Time{}, errBadDate("endDate")
	}
	if hasFrom || hasTo {
		if !hasFrom || !hasTo {
			return time.Time{}, time.Time{}, errRangeIncomplete
		}
		if to.Before(from) {
			return time.Time{}, time.Time{}, errRangeInverted
		}
		return from, to, nil
	}

	year, month, err := parseYearMonth(r)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, errBadMonth
	}
	from, to = services.MonthRange(year, month)
	return from, to, nil
}

func parseTransactionFilter(r *http.Request) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		typ := core.TransactionType(v)
		if !typ.Valid() {
			return f, errBadType
		}
		f.Type = typ
	}
	if v := strings.TrimSpace(q.Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, errBadCategoryID
		}
		f.CategoryID = id
	}

	var err error
	if f.From, _, err = queryDate(r, "startDate"); err != nil {
		return f, errBadDate("startDate")
	}
	if f.To, _, err = queryDate(r, "endDate"); err != nil {
		return f, errBadDate("endDate")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, errRangeInverted
	}

	if f.MinCents, err = queryAmount(r, "minAmount"); err != nil {
		return f, errBadAmount("minAmount")
	}
	if f.MaxCents, err = queryAmount(r, "maxAmount"); err != nil {
		return f, errBadAmount("maxAmount")
	}
	if f.MinCents != nil && f.MaxCents != nil && *f.MaxCents < *f.MinCents {
		return f, errAmountInverted
	}

	f.Search = sanitizeInput(q.Get("search"))

	f.Page = 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return f, errBadPage
		}
		f.Page = p
	}
	f.Limit = 20
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 || l > 100 {
			return f, errBadLimit
		}
		f.Limit = l
	}
	return f, nil
}
