package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// ReportInvalidator drops cached report results after a mutation.
type ReportInvalidator interface {
	InvalidateUser(userID int64)
}

// TransactionService orchestrates transaction writes across SQLite, the
// ledger sync queue and the report cache.
type TransactionService struct {
	storage     *storage.SQLiteRepository
	amqpClient  *amqp.Client
	reports     ReportInvalidator
	ledgerQueue string
}

func NewTransactionService(st *storage.SQLiteRepository, amqpClient *amqp.Client, reports ReportInvalidator, ledgerQueue string) *TransactionService {
	return &TransactionService{
		storage:     st,
		amqpClient:  amqpClient,
		reports:     reports,
		ledgerQueue: ledgerQueue,
	}
}

// checkCategory verifies the referenced category is live, owned by the
// user and agrees with the transaction type.
func (s *TransactionService) checkCategory(ctx context.Context, userID, categoryID int64, typ core.TransactionType) error {
	cat, err := s.storage.GetCategory(ctx, userID, categoryID)
	if err != nil {
		var ve core.ValidationError
		ve.Add("categoryId", "category does not exist")
		return ve.OrNil()
	}
	if cat.Type != typ {
		var ve core.ValidationError
		ve.Add("categoryId", "category type does not match transaction type")
		return ve.OrNil()
	}
	return nil
}

// Create validates and stores a new transaction, then queues it for
// ledger export. Queue failures never fail the request; the periodic
// catch-up sweep picks the row up later.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, t.UserID, t.CategoryID, t.Type); err != nil {
		return nil, err
	}

	if err := s.storage.CreateTransaction(ctx, &t); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, &t)
	return &t, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	return s.storage.GetTransaction(ctx, userID, id)
}

func (s *TransactionService) List(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.Transaction, int64, error) {
	return s.storage.ListTransactions(ctx, userID, f)
}

// Update replaces the mutable fields of an owned transaction.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	existing, err := s.storage.GetTransaction(ctx, t.UserID, t.ID)
	if err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, t.UserID, t.CategoryID, t.Type); err != nil {
		return nil, err
	}

	t.CreatedAt = existing.CreatedAt
	if err := s.storage.UpdateTransaction(ctx, &t); err != nil {
		return nil, err
	}

	updated, err := s.storage.GetTransaction(ctx, t.UserID, t.ID)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, updated)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.storage.SoftDeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	if s.reports != nil {
		s.reports.InvalidateUser(userID)
	}
	return nil
}

// Clone copies an owned transaction into a new one, applying overrides.
func (s *TransactionService) Clone(ctx context.Context, userID, id int64, description string, amount *core.Money, date *time.Time, notes *string) (*core.Transaction, error) {
	source, err := s.storage.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	clone := source.CloneWith(description, amount, date, notes)
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	if err := s.storage.CreateTransaction(ctx, &clone); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, &clone)
	return &clone, nil
}

func (s *TransactionService) afterMutation(ctx context.Context, t *core.Transaction) {
	if s.reports != nil {
		s.reports.InvalidateUser(t.UserID)
	}
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping ledger sync message", "id", t.ID)
		return
	}
	if err := s.amqpClient.PublishLedgerSync(ctx, s.ledgerQueue, amqp.NewLedgerSyncMessage(t.ID, t.UserID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger sync message",
			"id", t.ID, "error", err)
	}
}
