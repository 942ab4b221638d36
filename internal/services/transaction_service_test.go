package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func newTestTransactionService(t *testing.T) (*TransactionService, *ReportService, *storage.SQLiteRepository, *core.User) {
	t.Helper()
	repo := newTestStorage(t)
	reports := NewReportService(repo)
	svc := NewTransactionService(repo, nil, reports, "sync_ledger")

	u := &core.User{
		Email:        "tx@example.com",
		PasswordHash: []byte("x"),
		Settings:     core.Settings{Currency: "USD", Theme: "light"},
		Status:       core.StatusActive,
	}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return svc, reports, repo, u
}

func mustCategory(t *testing.T, repo *storage.SQLiteRepository, userID int64, name string, typ core.TransactionType) *core.Category {
	t.Helper()
	c := &core.Category{UserID: userID, Name: name, Type: typ}
	if err := repo.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func TestCreateRejectsCategoryTypeMismatch(t *testing.T) {
	svc, _, repo, u := newTestTransactionService(t)
	income := mustCategory(t, repo, u.ID, "Salary", core.TypeIncome)

	_, err := svc.Create(context.Background(), core.Transaction{
		UserID:      u.ID,
		CategoryID:  income.ID,
		Type:        core.TypeExpense,
		Amount:      core.Money{Cents: 500},
		Description: "mismatched",
		Date:        time.Now().UTC(),
	})
	ve, ok := core.AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Fields[0].Field != "categoryId" {
		t.Fatalf("expected categoryId field error, got %+v", ve.Fields)
	}
}

func TestCreateRejectsNegativeIncome(t *testing.T) {
	svc, _, repo, u := newTestTransactionService(t)
	income := mustCategory(t, repo, u.ID, "Salary", core.TypeIncome)

	_, err := svc.Create(context.Background(), core.Transaction{
		UserID:      u.ID,
		CategoryID:  income.ID,
		Type:        core.TypeIncome,
		Amount:      core.Money{Cents: -100},
		Description: "negative income",
		Date:        time.Now().UTC(),
	})
	if _, ok := core.AsValidationError(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Zero income is allowed.
	if _, err := svc.Create(context.Background(), core.Transaction{
		UserID:      u.ID,
		CategoryID:  income.ID,
		Type:        core.TypeIncome,
		Amount:      core.Money{Cents: 0},
		Description: "zero income",
		Date:        time.Now().UTC(),
	}); err != nil {
		t.Fatalf("zero income should be valid: %v", err)
	}
}

func TestCloneCopiesWithOverrides(t *testing.T) {
	svc, _, repo, u := newTestTransactionService(t)
	cat := mustCategory(t, repo, u.ID, "Food", core.TypeExpense)
	ctx := context.Background()

	source, err := svc.Create(ctx, core.Transaction{
		UserID:      u.ID,
		CategoryID:  cat.ID,
		Type:        core.TypeExpense,
		Amount:      core.Money{Cents: 1250},
		Description: "weekly groceries",
		Tags:        []string{"food"},
		Date:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amount := core.Money{Cents: 1400}
	clone, err := svc.Clone(ctx, u.ID, source.ID, "", &amount, nil, nil)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.ID == source.ID {
		t.Fatal("clone must be a new row")
	}
	if clone.Description != source.Description {
		t.Fatalf("description should carry over, got %q", clone.Description)
	}
	if clone.Amount.Cents != 1400 {
		t.Fatalf("amount override not applied, got %d", clone.Amount.Cents)
	}
	if len(clone.Tags) != 1 || clone.Tags[0] != "food" {
		t.Fatalf("tags should carry over, got %v", clone.Tags)
	}

	// Cloning a foreign transaction is a not-found.
	other := &core.User{Email: "other@example.com", PasswordHash: []byte("x"), Status: core.StatusActive}
	if err := repo.CreateUser(ctx, other); err != nil {
		t.Fatalf("create other user: %v", err)
	}
	if _, err := svc.Clone(ctx, other.ID, source.ID, "", nil, nil, nil); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetIsIdempotent(t *testing.T) {
	svc, _, repo, u := newTestTransactionService(t)
	cat := mustCategory(t, repo, u.ID, "Food", core.TypeExpense)
	ctx := context.Background()

	created, err := svc.Create(ctx, core.Transaction{
		UserID:      u.ID,
		CategoryID:  cat.ID,
		Type:        core.TypeExpense,
		Amount:      core.Money{Cents: 300},
		Description: "coffee",
		Date:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.Get(ctx, u.ID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := svc.Get(ctx, u.ID, created.ID)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if first.ID != second.ID || first.Amount != second.Amount ||
		first.Description != second.Description ||
		!first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Fatalf("reads differ: %+v vs %+v", first, second)
	}
}

func TestReportCacheInvalidatedOnWrite(t *testing.T) {
	svc, reports, repo, u := newTestTransactionService(t)
	cat := mustCategory(t, repo, u.ID, "Food", core.TypeExpense)
	ctx := context.Background()

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Create(ctx, core.Transaction{
		UserID: u.ID, CategoryID: cat.ID, Type: core.TypeExpense,
		Amount: core.Money{Cents: 3000}, Description: "first", Date: day,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	from, to := MonthRange(2024, 3)
	s, err := reports.Summary(ctx, u.ID, from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Expenses.Total.Cents != 3000 {
		t.Fatalf("expected 3000, got %d", s.Expenses.Total.Cents)
	}

	// A second write must not serve the stale cached summary.
	if _, err := svc.Create(ctx, core.Transaction{
		UserID: u.ID, CategoryID: cat.ID, Type: core.TypeExpense,
		Amount: core.Money{Cents: 2000}, Description: "second", Date: day,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	s, err = reports.Summary(ctx, u.ID, from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Expenses.Total.Cents != 5000 {
		t.Fatalf("cache not invalidated, got %d", s.Expenses.Total.Cents)
	}
}

func TestSummaryExample(t *testing.T) {
	svc, reports, repo, u := newTestTransactionService(t)
	income := mustCategory(t, repo, u.ID, "Salary", core.TypeIncome)
	expense := mustCategory(t, repo, u.ID, "Food", core.TypeExpense)
	ctx := context.Background()

	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, cents := range []int64{10000, 5000} {
		if _, err := svc.Create(ctx, core.Transaction{
			UserID: u.ID, CategoryID: income.ID, Type: core.TypeIncome,
			Amount: core.Money{Cents: cents}, Description: "pay", Date: march,
		}); err != nil {
			t.Fatalf("create income: %v", err)
		}
	}
	if _, err := svc.Create(ctx, core.Transaction{
		UserID: u.ID, CategoryID: expense.ID, Type: core.TypeExpense,
		Amount: core.Money{Cents: 3000}, Description: "food", Date: march,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	from, to := MonthRange(2024, 3)
	s, err := reports.Summary(ctx, u.ID, from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Income.Total.Cents != 15000 || s.Income.Count != 2 {
		t.Fatalf("income got %+v", s.Income)
	}
	if s.Expenses.Total.Cents != 3000 || s.Expenses.Count != 1 {
		t.Fatalf("expenses got %+v", s.Expenses)
	}
	if s.NetAmount.Cents != 12000 {
		t.Fatalf("net got %d", s.NetAmount.Cents)
	}
}
