package invoice

import (
	"context"

	"github.com/surfbill/surfbill/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Save validates and persists an invoice as its own document,
	// replacing any previous revision atomically
	Save(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by its number
	Get(ctx context.Context, number string) (*Invoice, error)

	// List returns a snapshot of invoice summaries matching the filter,
	// ordered by the filter's sort key
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Summary, error)

	// Count returns the total number of stored invoices
	Count(ctx context.Context) (int, error)

	// RebuildIndex recomputes the number-to-document index by scanning
	// the document store; used for recovery after external corruption
	RebuildIndex(ctx context.Context) error

	// Backup copies all current documents to a timestamped backup
	// location and returns its path
	Backup(ctx context.Context) (string, error)
}
