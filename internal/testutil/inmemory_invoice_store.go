package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/surfbill/surfbill/internal/domain/invoice"
	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository for service tests
type InMemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]*invoice.Invoice
	vatRate  decimal.Decimal
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store using
// the Italian standard VAT rate
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		invoices: make(map[string]*invoice.Invoice),
		vatRate:  decimal.NewFromFloat(0.22),
	}
}

func (s *InMemoryInvoiceStore) Save(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice is nil").Mark(ierr.ErrValidation)
	}
	if err := inv.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inv.ComputeTotals(s.vatRate)
	s.invoices[inv.Number] = copyInvoice(inv)
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, number string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[number]
	if !ok {
		return nil, ierr.NewError("invoice document does not exist").
			WithHintf("no invoice stored as %s", number).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Summary, error) {
	s.mu.RLock()
	summaries := lo.Map(lo.Values(s.invoices), func(inv *invoice.Invoice, _ int) *invoice.Summary {
		return inv.Summary()
	})
	s.mu.RUnlock()

	if filter != nil && filter.Query != "" {
		query := strings.ToLower(filter.Query)
		summaries = lo.Filter(summaries, func(sum *invoice.Summary, _ int) bool {
			return strings.Contains(strings.ToLower(sum.Number), query) ||
				strings.Contains(strings.ToLower(sum.CustomerName), query) ||
				strings.Contains(strings.ToLower(sum.Notes), query)
		})
	}

	switch filter.GetSortBy() {
	case types.InvoiceSortByNumber:
		sort.Slice(summaries, func(i, j int) bool {
			return summaries[i].Number < summaries[j].Number
		})
	default:
		sort.Slice(summaries, func(i, j int) bool {
			if !summaries[i].Date.Equal(summaries[j].Date.Time) {
				return summaries[i].Date.After(summaries[j].Date.Time)
			}
			return summaries[i].Number < summaries[j].Number
		})
	}
	return summaries, nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices), nil
}

func (s *InMemoryInvoiceStore) RebuildIndex(ctx context.Context) error {
	return nil
}

func (s *InMemoryInvoiceStore) Backup(ctx context.Context) (string, error) {
	return "inmemory-backup", nil
}

// Clear removes all invoices between tests
func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = make(map[string]*invoice.Invoice)
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	out.Items = make([]invoice.LineItem, len(inv.Items))
	copy(out.Items, inv.Items)
	return &out
}
