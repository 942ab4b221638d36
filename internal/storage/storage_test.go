package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository, email string) *core.User {
	t.Helper()
	u := &core.User{
		Email:        email,
		PasswordHash: []byte("x"),
		Profile:      core.Profile{Name: "Test User"},
		Settings:     core.Settings{Currency: "USD", Theme: "light"},
		Status:       core.StatusActive,
	}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newTestCategory(t *testing.T, repo *SQLiteRepository, userID int64, name string, typ core.TransactionType) *core.Category {
	t.Helper()
	c := &core.Category{UserID: userID, Name: name, Type: typ}
	if err := repo.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return c
}

func newTestTransaction(t *testing.T, repo *SQLiteRepository, userID, categoryID int64, typ core.TransactionType, cents int64, date time.Time) *core.Transaction {
	t.Helper()
	tx := &core.Transaction{
		UserID:      userID,
		CategoryID:  categoryID,
		Type:        typ,
		Amount:      core.Money{Cents: cents},
		Description: "test transaction",
		Date:        date,
	}
	if err := repo.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	newTestUser(t, repo, "dup@example.com")

	err := repo.CreateUser(context.Background(), &core.User{
		Email:        "dup@example.com",
		PasswordHash: []byte("x"),
		Status:       core.StatusPendingVerification,
	})
	if !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetUserByEmailNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetUserByEmail(context.Background(), "missing@example.com")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoryNameUniquePerUserAndType(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "cat@example.com")
	newTestCategory(t, repo, u.ID, "Groceries", core.TypeExpense)

	// Same name and type collides, case-insensitively.
	err := repo.CreateCategory(ctx, &core.Category{UserID: u.ID, Name: "groceries", Type: core.TypeExpense})
	if !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same name with the other type is allowed.
	if err := repo.CreateCategory(ctx, &core.Category{UserID: u.ID, Name: "Groceries", Type: core.TypeIncome}); err != nil {
		t.Fatalf("same name different type: %v", err)
	}

	// Another user may reuse the name.
	other := newTestUser(t, repo, "other@example.com")
	if err := repo.CreateCategory(ctx, &core.Category{UserID: other.ID, Name: "Groceries", Type: core.TypeExpense}); err != nil {
		t.Fatalf("same name different user: %v", err)
	}
}

func TestCategoryNameReusableAfterDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "reuse@example.com")
	c := newTestCategory(t, repo, u.ID, "Travel", core.TypeExpense)

	if err := repo.SoftDeleteCategory(ctx, u.ID, c.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if _, err := repo.GetCategory(ctx, u.ID, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted category should be not found, got %v", err)
	}
	if err := repo.CreateCategory(ctx, &core.Category{UserID: u.ID, Name: "Travel", Type: core.TypeExpense}); err != nil {
		t.Fatalf("reuse name after delete: %v", err)
	}
}

func TestTransactionOwnershipScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "owner@example.com")
	intruder := newTestUser(t, repo, "intruder@example.com")
	cat := newTestCategory(t, repo, owner.ID, "Misc", core.TypeExpense)
	tx := newTestTransaction(t, repo, owner.ID, cat.ID, core.TypeExpense, 1500, time.Now().UTC())

	if _, err := repo.GetTransaction(ctx, owner.ID, tx.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, intruder.ID, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign row should be not found, got %v", err)
	}
	if err := repo.SoftDeleteTransaction(ctx, intruder.ID, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign delete should be not found, got %v", err)
	}
}

func TestTransactionTagsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "tags@example.com")
	cat := newTestCategory(t, repo, u.ID, "Food", core.TypeExpense)

	tx := &core.Transaction{
		UserID:      u.ID,
		CategoryID:  cat.ID,
		Type:        core.TypeExpense,
		Amount:      core.Money{Cents: 999},
		Description: "lunch",
		Tags:        []string{"work", "team"},
		Date:        time.Now().UTC(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetTransaction(ctx, u.ID, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" || got.Tags[1] != "team" {
		t.Fatalf("tags round trip got %v", got.Tags)
	}
}

func TestListTransactionsFiltersAndPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "list@example.com")
	food := newTestCategory(t, repo, u.ID, "Food", core.TypeExpense)
	salary := newTestCategory(t, repo, u.ID, "Salary", core.TypeIncome)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		newTestTransaction(t, repo, u.ID, food.ID, core.TypeExpense, int64(1000+i*100), base.AddDate(0, 0, i))
	}
	newTestTransaction(t, repo, u.ID, salary.ID, core.TypeIncome, 250000, base)

	items, total, err := repo.ListTransactions(ctx, u.ID, TransactionFilter{Type: core.TypeExpense, Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(items))
	}
	// Newest first.
	if !items[0].Date.After(items[1].Date) {
		t.Fatalf("expected descending date order: %v then %v", items[0].Date, items[1].Date)
	}

	min := int64(120000)
	items, total, err = repo.ListTransactions(ctx, u.ID, TransactionFilter{MinCents: &min})
	if err != nil {
		t.Fatalf("list with min: %v", err)
	}
	if total != 1 || items[0].Amount.Cents != 250000 {
		t.Fatalf("min filter got total=%d items=%v", total, items)
	}
}

func TestListTransactionsSearchEscapesWildcards(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "search@example.com")
	cat := newTestCategory(t, repo, u.ID, "Misc", core.TypeExpense)

	tx := &core.Transaction{
		UserID: u.ID, CategoryID: cat.ID, Type: core.TypeExpense,
		Amount: core.Money{Cents: 100}, Description: "100% cotton shirt",
		Date: time.Now().UTC(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	newTestTransaction(t, repo, u.ID, cat.ID, core.TypeExpense, 200, time.Now().UTC())

	_, total, err := repo.ListTransactions(ctx, u.ID, TransactionFilter{Search: "100%"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("literal %% search expected 1 row, got %d", total)
	}
}

func TestGetSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "summary@example.com")
	food := newTestCategory(t, repo, u.ID, "Food", core.TypeExpense)
	salary := newTestCategory(t, repo, u.ID, "Salary", core.TypeIncome)

	march := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	newTestTransaction(t, repo, u.ID, salary.ID, core.TypeIncome, 10000, march)
	newTestTransaction(t, repo, u.ID, salary.ID, core.TypeIncome, 5000, march.AddDate(0, 0, 1))
	newTestTransaction(t, repo, u.ID, food.ID, core.TypeExpense, 3000, march.AddDate(0, 0, 2))
	// Outside the range, must not count.
	newTestTransaction(t, repo, u.ID, food.ID, core.TypeExpense, 9999, march.AddDate(0, 2, 0))

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	s, err := repo.GetSummary(ctx, u.ID, from, to)
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

func TestGetCategoryBreakdownOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "breakdown@example.com")
	food := newTestCategory(t, repo, u.ID, "Food", core.TypeExpense)
	travel := newTestCategory(t, repo, u.ID, "Travel", core.TypeExpense)

	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	newTestTransaction(t, repo, u.ID, food.ID, core.TypeExpense, 1000, day)
	newTestTransaction(t, repo, u.ID, food.ID, core.TypeExpense, 2000, day)
	newTestTransaction(t, repo, u.ID, travel.ID, core.TypeExpense, 5000, day)

	rows, err := repo.GetCategoryBreakdown(ctx, u.ID, core.TypeExpense,
		day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].CategoryName != "Travel" || rows[0].Total.Cents != 5000 {
		t.Fatalf("first row got %+v", rows[0])
	}
	if rows[1].Count != 2 || rows[1].Average.Cents != 1500 {
		t.Fatalf("second row got %+v", rows[1])
	}
}

func TestVerifyTokenConsumeOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := &core.User{
		Email:        "pending@example.com",
		PasswordHash: []byte("x"),
		Status:       core.StatusPendingVerification,
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.SetVerifyToken(ctx, u.ID, "hash-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("set verify token: %v", err)
	}

	id, err := repo.ConsumeVerifyToken(ctx, "hash-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if id != u.ID {
		t.Fatalf("expected user %d, got %d", u.ID, id)
	}

	got, err := repo.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Status != core.StatusActive {
		t.Fatalf("expected active, got %s", got.Status)
	}

	// Second consume must fail.
	if _, err := repo.ConsumeVerifyToken(ctx, "hash-1"); !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("replay should fail, got %v", err)
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "refresh@example.com")

	if err := repo.CreateRefreshToken(ctx, u.ID, "rt-hash", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create refresh token: %v", err)
	}
	tok, err := repo.GetRefreshToken(ctx, "rt-hash")
	if err != nil {
		t.Fatalf("get refresh token: %v", err)
	}
	if tok.Revoked {
		t.Fatal("new token should not be revoked")
	}

	if err := repo.RevokeUserRefreshTokens(ctx, u.ID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	tok, err = repo.GetRefreshToken(ctx, "rt-hash")
	if err != nil {
		t.Fatalf("get after revoke: %v", err)
	}
	if !tok.Revoked {
		t.Fatal("token should be revoked")
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "sync@example.com")
	cat := newTestCategory(t, repo, u.ID, "Misc", core.TypeExpense)
	tx := newTestTransaction(t, repo, u.ID, cat.ID, core.TypeExpense, 100, time.Now().UTC())

	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("expected the new row pending, got %v", pending)
	}

	if err := repo.MarkSynced(ctx, tx.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, err = repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending after sync: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %v", pending)
	}

	// An update makes the row pending again.
	tx.Description = "edited"
	if err := repo.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	pending, err = repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending after edit: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("edited row should be pending again, got %v", pending)
	}
}

func TestErroredSyncRowsAreRetried(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "syncerr@example.com")
	cat := newTestCategory(t, repo, u.ID, "Misc", core.TypeExpense)
	tx := newTestTransaction(t, repo, u.ID, cat.ID, core.TypeExpense, 100, time.Now().UTC())

	// A failed export keeps the row in the catch-up sweep.
	if err := repo.MarkSyncError(ctx, tx.ID); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("errored row should stay pending, got %v", pending)
	}

	// Only a successful export takes it out.
	if err := repo.MarkSynced(ctx, tx.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, err = repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending after sync: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("synced row should leave the sweep, got %v", pending)
	}
}
