package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/surfbill/surfbill/internal/errors"
)

// DateFormat is the canonical on-disk date format for invoice documents
const DateFormat = "2006-01-02"

// Date wraps time.Time so invoice dates round-trip through documents
// as plain YYYY-MM-DD values
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: t.Truncate(24 * time.Hour)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateFormat) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		// older documents carry full timestamps
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	d.Time = t
	return nil
}

// Customer holds the invoice recipient. VATNumber is the partita IVA,
// SDICode the Italian electronic invoicing routing code. Both optional
// for private customers.
type Customer struct {
	Name      string `json:"name"`
	Street    string `json:"street,omitempty"`
	Email     string `json:"email,omitempty"`
	VATNumber string `json:"vat_number,omitempty"`
	SDICode   string `json:"sdi_code,omitempty"`
}

// LineItem represents a single item in an invoice. Total is derived
// from Quantity and UnitPrice; it is stored for convenience but never
// authoritative.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

// ComputeTotal recomputes the derived line total
func (i *LineItem) ComputeTotal() {
	i.Total = i.Quantity.Mul(i.UnitPrice)
}

// Validate validates the line item
func (i *LineItem) Validate() error {
	if strings.TrimSpace(i.Description) == "" {
		return ierr.NewError("line item validation failed").
			WithHint("item description must not be empty").
			Mark(ierr.ErrValidation)
	}

	if !i.Quantity.IsPositive() {
		return ierr.NewError("line item validation failed").
			WithHint("quantity must be greater than zero").
			Mark(ierr.ErrValidation)
	}

	if i.UnitPrice.IsNegative() {
		return ierr.NewError("line item validation failed").
			WithHint("unit price must be non negative").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// Invoice represents one persisted invoice document. Documents are
// immutable by convention: edits are full rewrites through Save.
type Invoice struct {
	Number      string          `json:"invoice_number"`
	Series      string          `json:"series"`
	Date        Date            `json:"date"`
	Customer    Customer        `json:"customer"`
	Items       []LineItem      `json:"items"`
	Notes       string          `json:"notes,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	VATAmount   decimal.Decimal `json:"vat_amount"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// ComputeTotals recomputes every derived amount from the line items.
// TotalAmount is the sum of line totals, VATAmount the configured
// fraction of it (0.22 for the Italian standard rate).
func (inv *Invoice) ComputeTotals(vatRate decimal.Decimal) {
	total := decimal.Zero
	for i := range inv.Items {
		inv.Items[i].ComputeTotal()
		total = total.Add(inv.Items[i].Total)
	}
	inv.TotalAmount = total
	inv.VATAmount = total.Mul(vatRate).Round(2)
}

// GrandTotal returns subtotal plus VAT
func (inv *Invoice) GrandTotal() decimal.Decimal {
	return inv.TotalAmount.Add(inv.VATAmount)
}

// Validate validates the invoice before persistence
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.Number) == "" {
		return ierr.NewError("invoice validation failed").
			WithHint("invoice number must not be empty").
			Mark(ierr.ErrValidation)
	}

	if !NumberIsPathSafe(inv.Number) {
		return ierr.NewError("invoice validation failed").
			WithHintf("invoice number %q contains path-unsafe characters", inv.Number).
			Mark(ierr.ErrValidation)
	}

	if len(inv.Items) == 0 {
		return ierr.NewError("invoice validation failed").
			WithHint("invoice must contain at least one item").
			Mark(ierr.ErrValidation)
	}

	for i := range inv.Items {
		if err := inv.Items[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// totalTolerance absorbs rounding drift in documents written by older
// versions that rounded line totals to cents
var totalTolerance = decimal.NewFromFloat(0.01)

// ValidateStored checks the mathematical consistency of a document read
// from disk: every stored total must match its derivation. Used by the
// storage layer to fail closed on tampered or truncated documents.
func (inv *Invoice) ValidateStored(vatRate decimal.Decimal) error {
	sum := decimal.Zero
	for i := range inv.Items {
		item := inv.Items[i]
		derived := item.Quantity.Mul(item.UnitPrice)
		if derived.Sub(item.Total).Abs().GreaterThan(totalTolerance) {
			return ierr.NewError("stored line total does not match quantity times price").
				WithHintf("invoice %s: item %d total is inconsistent", inv.Number, i).
				Mark(ierr.ErrCorruptData)
		}
		sum = sum.Add(item.Total)
	}

	if sum.Sub(inv.TotalAmount).Abs().GreaterThan(totalTolerance) {
		return ierr.NewError("stored invoice total does not match the sum of line totals").
			WithHintf("invoice %s: total_amount is inconsistent", inv.Number).
			Mark(ierr.ErrCorruptData)
	}

	derivedVAT := inv.TotalAmount.Mul(vatRate)
	if derivedVAT.Sub(inv.VATAmount).Abs().GreaterThan(totalTolerance) {
		return ierr.NewError("stored vat amount does not match the configured rate").
			WithHintf("invoice %s: vat_amount is inconsistent", inv.Number).
			Mark(ierr.ErrCorruptData)
	}

	return nil
}

// Summary converts the invoice into its index entry
func (inv *Invoice) Summary() *Summary {
	return &Summary{
		Number:       inv.Number,
		Series:       inv.Series,
		Date:         inv.Date,
		CustomerName: inv.Customer.Name,
		TotalAmount:  inv.TotalAmount,
		Notes:        inv.Notes,
	}
}

// NumberIsPathSafe reports whether an invoice number can be embedded in
// a document file name. Numbers become "<number>.json" on disk, so path
// separators and relative path elements are rejected.
func NumberIsPathSafe(number string) bool {
	if number == "" || number == "." || number == ".." {
		return false
	}
	return !strings.ContainsAny(number, `/\`) && !strings.ContainsRune(number, 0)
}
