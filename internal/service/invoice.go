package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/surfbill/surfbill/internal/config"
	"github.com/surfbill/surfbill/internal/counter"
	"github.com/surfbill/surfbill/internal/domain/invoice"
	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/logger"
	"github.com/surfbill/surfbill/internal/pdf"
	"github.com/surfbill/surfbill/internal/types"
)

// InvoiceService is the operation surface consumed by the application
// shell: create/save/load/list invoices, peek at the numbering, render
// PDFs and trigger maintenance.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*invoice.Invoice, error)
	SaveInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, number string) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Summary, error)
	CountInvoices(ctx context.Context) (int, error)
	PeekNumber(ctx context.Context, series string) (int64, error)
	RenderPDF(ctx context.Context, number string, outputPath string) (string, error)
	Backup(ctx context.Context) (string, error)
	RebuildIndex(ctx context.Context) error
}

// ServiceParams holds the dependencies for the invoice service
type ServiceParams struct {
	Logger      *logger.Logger
	Config      *config.Configuration
	InvoiceRepo invoice.Repository
	Counter     counter.Store
	PDF         pdf.Generator
}

type invoiceService struct {
	ServiceParams
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

// CreateInvoice validates the request, reserves the next number for the
// series from the counter store and persists the new record. The
// counter advance is at-least-once: a failed save after a successful
// advance leaves a tolerated gap, never a duplicate.
func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*invoice.Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	series := req.Series
	if series == "" {
		series = s.Config.Invoicing.DefaultSeries
	}

	seq, err := s.Counter.NextNumber(ctx, series)
	if err != nil {
		return nil, err
	}

	date := req.Date
	if date.IsZero() {
		date = time.Now()
	}

	now := time.Now().UTC()
	inv := &invoice.Invoice{
		Number:    s.formatNumber(series, seq),
		Series:    series,
		Date:      invoice.NewDate(date),
		Customer:  req.Customer.ToCustomer(),
		Items:     req.ToLineItems(),
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.InvoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"number", inv.Number,
		"series", series,
		"customer", inv.Customer.Name)
	return inv, nil
}

// SaveInvoice persists an edited record as a full rewrite of its
// document; the number is never reassigned
func (s *invoiceService) SaveInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if inv != nil {
		inv.UpdatedAt = time.Now().UTC()
	}
	return s.InvoiceRepo.Save(ctx, inv)
}

func (s *invoiceService) GetInvoice(ctx context.Context, number string) (*invoice.Invoice, error) {
	return s.InvoiceRepo.Get(ctx, number)
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Summary, error) {
	return s.InvoiceRepo.List(ctx, filter)
}

func (s *invoiceService) CountInvoices(ctx context.Context) (int, error) {
	return s.InvoiceRepo.Count(ctx)
}

// PeekNumber reports the highest issued number for display without
// consuming one
func (s *invoiceService) PeekNumber(ctx context.Context, series string) (int64, error) {
	if series == "" {
		series = s.Config.Invoicing.DefaultSeries
	}
	return s.Counter.Peek(ctx, series)
}

// RenderPDF loads the persisted record and renders it. Save and render
// are independent steps: a render failure leaves the stored invoice
// untouched. An empty outputPath defaults to the invoices directory.
func (s *invoiceService) RenderPDF(ctx context.Context, number string, outputPath string) (string, error) {
	inv, err := s.InvoiceRepo.Get(ctx, number)
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		outputPath = filepath.Join(s.Config.Storage.DataDir, "invoices", number+".pdf")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", ierr.WithError(err).
			WithHintf("failed to create output directory for %s", outputPath).
			Mark(ierr.ErrIO)
	}

	if err := s.PDF.Render(ctx, inv, outputPath); err != nil {
		return "", err
	}

	s.Logger.Infow("rendered invoice pdf", "number", number, "path", outputPath)
	return outputPath, nil
}

func (s *invoiceService) Backup(ctx context.Context) (string, error) {
	return s.InvoiceRepo.Backup(ctx)
}

func (s *invoiceService) RebuildIndex(ctx context.Context) error {
	return s.InvoiceRepo.RebuildIndex(ctx)
}

// formatNumber renders a sequence value as the user-facing invoice
// number: zero-padded, prefixed with the series unless it is the
// default one ("0001", "2026-0001")
func (s *invoiceService) formatNumber(series string, seq int64) string {
	padded := fmt.Sprintf("%0*d", s.Config.Invoicing.NumberPadding, seq)
	if series == types.SeriesDefault {
		return padded
	}
	return fmt.Sprintf("%s-%s", series, padded)
}
