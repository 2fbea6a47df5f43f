package types

// SeriesDefault is the numbering series used when no explicit series
// (e.g. a fiscal year) is configured.
const SeriesDefault = "default"

// InvoiceSortKey is the explicit ordering applied to invoice listings
type InvoiceSortKey string

const (
	// InvoiceSortByDate orders newest first, ties broken by number
	InvoiceSortByDate InvoiceSortKey = "date"
	// InvoiceSortByNumber orders lexicographically by invoice number
	InvoiceSortByNumber InvoiceSortKey = "number"
)

func (k InvoiceSortKey) Validate() bool {
	switch k {
	case InvoiceSortByDate, InvoiceSortByNumber:
		return true
	}
	return false
}

// InvoiceFilter narrows and orders invoice listings. The zero value
// lists everything ordered by date.
type InvoiceFilter struct {
	// Query is a case-insensitive substring match over invoice number,
	// customer name and notes. Empty matches all.
	Query string
	// SortBy defaults to InvoiceSortByDate when empty
	SortBy InvoiceSortKey
}

func (f *InvoiceFilter) GetSortBy() InvoiceSortKey {
	if f == nil || f.SortBy == "" {
		return InvoiceSortByDate
	}
	return f.SortBy
}
