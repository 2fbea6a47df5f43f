package invoice

import (
	"github.com/shopspring/decimal"
)

// Summary is the index entry for one invoice document: enough to list
// and search without touching the document itself. Always derivable
// from the document, never a source of truth.
type Summary struct {
	Number       string          `json:"invoice_number"`
	Series       string          `json:"series"`
	Date         Date            `json:"date"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Notes        string          `json:"notes,omitempty"`
}
