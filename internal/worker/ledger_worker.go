package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// LedgerWorker exports transactions to the external ledger archive. It
// consumes sync messages from AMQP and additionally sweeps the database
// for rows the queue missed (lost messages, downtime).
type LedgerWorker struct {
	storage     *storage.SQLiteRepository
	ledger      sheets.LedgerWriter
	amqpClient  *amqp.Client
	ledgerQueue string
	batchSize   int
}

func NewLedgerWorker(st *storage.SQLiteRepository, ledger sheets.LedgerWriter, amqpClient *amqp.Client, ledgerQueue string, batchSize int) *LedgerWorker {
	return &LedgerWorker{
		storage:     st,
		ledger:      ledger,
		amqpClient:  amqpClient,
		ledgerQueue: ledgerQueue,
		batchSize:   batchSize,
	}
}

// Handle processes one raw sync delivery.
func (w *LedgerWorker) Handle(ctx context.Context, body []byte) error {
	msg, err := amqp.LedgerSyncMessageFromJSON(body)
	if err != nil {
		return amqp.Permanent(err)
	}

	slog.InfoContext(ctx, "Processing ledger sync message", "id", msg.ID)
	return w.export(ctx, msg.ID)
}

// export appends one transaction row to the ledger and marks it synced.
func (w *LedgerWorker) export(ctx context.Context, id int64) error {
	t, err := w.storage.GetTransactionAnyUser(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between enqueue and processing; nothing to export.
		slog.InfoContext(ctx, "Transaction gone before export, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", id, err)
	}

	user, err := w.storage.GetUserByID(ctx, t.UserID)
	if err != nil {
		return fmt.Errorf("load owner of transaction %d: %w", id, err)
	}

	rowRef, err := w.ledger.Append(ctx, user.Email, *t)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to flag sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append transaction %d to ledger: %w", id, err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark transaction %d synced: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction exported to ledger", "id", id, "row", rowRef)
	return nil
}

// RunCatchUp periodically re-enqueues rows that are still pending, so an
// export survives queue outages. Blocks until ctx is cancelled.
func (w *LedgerWorker) RunCatchUp(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "Catch-up sweep failed", "error", err)
			}
		}
	}
}

func (w *LedgerWorker) sweep(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Re-enqueueing pending ledger exports", "count", len(pending))
	for _, p := range pending {
		if w.amqpClient != nil {
			if err := w.amqpClient.PublishLedgerSync(ctx, w.ledgerQueue, amqp.NewLedgerSyncMessage(p.ID, p.UserID)); err != nil {
				slog.ErrorContext(ctx, "Failed to re-enqueue transaction", "id", p.ID, "error", err)
			}
			continue
		}
		// Without a queue, export inline.
		if err := w.export(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Inline export failed", "id", p.ID, "error", err)
		}
	}
	return nil
}
