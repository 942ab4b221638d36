package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Query parameter errors. These surface verbatim as 400 messages.
var (
	errRangeIncomplete = errors.New("startDate and endDate must be provided together")
	errRangeInverted   = errors.New("endDate must not be before startDate")
	errAmountInverted  = errors.New("maxAmount must not be less than minAmount")
	errBadYear         = errors.New("year must be a four digit year")
	errBadMonth        = errors.New("month must be between 1 and 12")
	errBadType         = errors.New("type must be income or expense")
	errBadCategoryID   = errors.New("categoryId must be a positive integer")
	errBadPage         = errors.New("page must be a positive integer")
	errBadLimit        = errors.New("limit must be between 1 and 100")
)

func errBadDate(name string) error {
	return fmt.Errorf("%s must be YYYY-MM-DD or RFC 3339", name)
}

func errBadAmount(name string) error {
	return fmt.Errorf("%s must be a decimal amount", name)
}

// pathID extracts the {id} path value as a positive integer.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseDate accepts YYYY-MM-DD or RFC 3339 timestamps, normalizing
// both to UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// queryDate parses an optional date query parameter. The boolean is
// false when the parameter is absent.
func queryDate(r *http.Request, name string) (time.Time, bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return time.Time{}, false, nil
	}
	t, err := parseDate(v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// queryAmount parses an optional decimal amount query parameter into
// cents.
func queryAmount(r *http.Request, name string) (*int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	m, err := core.ParseAmount(v)
	if err != nil {
		return nil, err
	}
	cents := m.Cents
	return &cents, nil
}

// parseYearMonth extracts year and month query parameters, defaulting
// to the current month when they are absent.
func parseYearMonth(r *http.Request) (year, month int, err error) {
	now := time.Now().UTC()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil || year < 1900 || year > 9999 {
			return 0, 0, errBadYear
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		month, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, errBadMonth
		}
	}
	return year, month, nil
}

// sanitizeInput trims whitespace and strips control characters except
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// pagination is the list metadata attached to paged responses.
type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func newPagination(page, limit int, total int64) pagination {
	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    int64(page) < totalPages,
		HasPrev:    page > 1 && total > 0,
	}
}
