package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	reportCacheSize = 512
	reportCacheTTL  = 5 * time.Minute
)

type reportEntry struct {
	summary   *core.Summary
	breakdown []core.CategoryBreakdown
}

// ReportService computes summary and breakdown aggregates with a small
// per-user LRU cache in front of SQLite. Mutations invalidate the user's
// entries so reads after writes stay consistent.
type ReportService struct {
	storage *storage.SQLiteRepository
	cache   *cache.LRUCache[reportEntry]
}

func NewReportService(st *storage.SQLiteRepository) *ReportService {
	return &ReportService{
		storage: st,
		cache:   cache.NewLRUCache[reportEntry](reportCacheSize, reportCacheTTL),
	}
}

// Cache exposes the underlying cache for cleanup registration.
func (s *ReportService) Cache() *cache.LRUCache[reportEntry] {
	return s.cache
}

// InvalidateUser implements ReportInvalidator.
func (s *ReportService) InvalidateUser(userID int64) {
	s.cache.DeletePrefix(fmt.Sprintf("user:%d:", userID))
}

// MonthRange returns the inclusive bounds of a calendar month in UTC.
func MonthRange(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func (s *ReportService) Summary(ctx context.Context, userID int64, from, to time.Time) (core.Summary, error) {
	key := fmt.Sprintf("user:%d:summary:%d:%d", userID, from.Unix(), to.Unix())
	if entry, ok := s.cache.Get(key); ok && entry.summary != nil {
		return *entry.summary, nil
	}

	summary, err := s.storage.GetSummary(ctx, userID, from, to)
	if err != nil {
		return core.Summary{}, err
	}
	s.cache.Set(key, reportEntry{summary: &summary})
	return summary, nil
}

func (s *ReportService) CategoryBreakdown(ctx context.Context, userID int64, typ core.TransactionType, from, to time.Time) ([]core.CategoryBreakdown, error) {
	key := fmt.Sprintf("user:%d:breakdown:%s:%d:%d", userID, typ, from.Unix(), to.Unix())
	if entry, ok := s.cache.Get(key); ok && entry.breakdown != nil {
		return entry.breakdown, nil
	}

	rows, err := s.storage.GetCategoryBreakdown(ctx, userID, typ, from, to)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []core.CategoryBreakdown{}
	}
	s.cache.Set(key, reportEntry{breakdown: rows})
	return rows, nil
}
