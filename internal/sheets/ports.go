package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound ledger adapters.
type (
	// LedgerWriter appends one transaction to the external ledger archive.
	LedgerWriter interface {
		Append(ctx context.Context, email string, t core.Transaction) (rowRef string, err error)
	}
)
