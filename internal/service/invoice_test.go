package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/surfbill/surfbill/internal/config"
	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/logger"
	"github.com/surfbill/surfbill/internal/testutil"
	"github.com/surfbill/surfbill/internal/types"
)

type InvoiceServiceSuite struct {
	suite.Suite
	ctx         context.Context
	service     InvoiceService
	cfg         *config.Configuration
	invoiceRepo *testutil.InMemoryInvoiceStore
	counter     *testutil.InMemoryCounterStore
	pdfGen      *testutil.MockPDFGenerator
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = config.GetDefaultConfig()
	s.cfg.Storage.DataDir = s.T().TempDir()
	s.invoiceRepo = testutil.NewInMemoryInvoiceStore()
	s.counter = testutil.NewInMemoryCounterStore()
	s.pdfGen = testutil.NewMockPDFGenerator()

	s.service = NewInvoiceService(ServiceParams{
		Logger:      logger.NewNopLogger(),
		Config:      s.cfg,
		InvoiceRepo: s.invoiceRepo,
		Counter:     s.counter,
		PDF:         s.pdfGen,
	})
}

func (s *InvoiceServiceSuite) TearDownTest() {
	s.invoiceRepo.Clear()
	s.counter.Clear()
}

func (s *InvoiceServiceSuite) validRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Customer: CustomerRequest{
			Name:      "Mario Rossi",
			Street:    "Via Garibaldi 1",
			VATNumber: "IT01234567890",
			SDICode:   "ABC1234",
		},
		Items: []CreateLineItemRequest{
			{
				Description: "Windsurf sail 5.2",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.RequireFromString("10.00"),
			},
		},
	}
}

func (s *InvoiceServiceSuite) TestCreateInvoiceScenario() {
	inv, err := s.service.CreateInvoice(s.ctx, s.validRequest())
	s.Require().NoError(err)

	s.Equal("0001", inv.Number)
	s.True(inv.TotalAmount.Equal(decimal.RequireFromString("20.00")),
		"grand total should be 20.00, got %s", inv.TotalAmount)
	s.True(inv.VATAmount.Equal(decimal.RequireFromString("4.40")))

	// the persisted record is listable with the same total
	summaries, err := s.service.ListInvoices(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal("0001", summaries[0].Number)
	s.True(summaries[0].TotalAmount.Equal(decimal.RequireFromString("20.00")))

	// and renders successfully
	path, err := s.service.RenderPDF(s.ctx, "0001", "")
	s.Require().NoError(err)
	s.FileExists(path)
	s.Equal([]string{"0001"}, s.pdfGen.Rendered())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceAssignsSequentialNumbers() {
	for _, want := range []string{"0001", "0002", "0003"} {
		inv, err := s.service.CreateInvoice(s.ctx, s.validRequest())
		s.Require().NoError(err)
		s.Equal(want, inv.Number)
	}
}

func (s *InvoiceServiceSuite) TestCreateInvoiceWithSeries() {
	req := s.validRequest()
	req.Series = "2026"

	inv, err := s.service.CreateInvoice(s.ctx, req)
	s.Require().NoError(err)
	s.Equal("2026-0001", inv.Number)
	s.Equal("2026", inv.Series)
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRejectsMissingCustomer() {
	req := s.validRequest()
	req.Customer.Name = ""

	_, err := s.service.CreateInvoice(s.ctx, req)
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRejectsZeroItems() {
	req := s.validRequest()
	req.Items = nil

	_, err := s.service.CreateInvoice(s.ctx, req)
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRejectsZeroQuantity() {
	req := s.validRequest()
	req.Items[0].Quantity = decimal.Zero

	_, err := s.service.CreateInvoice(s.ctx, req)
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestGetInvoiceRoundTrip() {
	created, err := s.service.CreateInvoice(s.ctx, s.validRequest())
	s.Require().NoError(err)

	loaded, err := s.service.GetInvoice(s.ctx, created.Number)
	s.Require().NoError(err)
	s.Equal(created.Number, loaded.Number)
	s.Equal(created.Customer, loaded.Customer)
	s.True(loaded.TotalAmount.Equal(created.TotalAmount))
}

func (s *InvoiceServiceSuite) TestGetInvoiceNotFound() {
	_, err := s.service.GetInvoice(s.ctx, "9999")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestSaveInvoiceIsFullRewrite() {
	created, err := s.service.CreateInvoice(s.ctx, s.validRequest())
	s.Require().NoError(err)

	created.Notes = "updated terms"
	s.Require().NoError(s.service.SaveInvoice(s.ctx, created))

	loaded, err := s.service.GetInvoice(s.ctx, created.Number)
	s.Require().NoError(err)
	s.Equal("updated terms", loaded.Notes)
	s.Equal(created.Number, loaded.Number, "edits never reassign the number")
}

func (s *InvoiceServiceSuite) TestPeekNumberScenario() {
	s.counter.SetLastIssued(types.SeriesDefault, 5)

	last, err := s.service.PeekNumber(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(int64(5), last)

	inv, err := s.service.CreateInvoice(s.ctx, s.validRequest())
	s.Require().NoError(err)
	s.Equal("0006", inv.Number)

	last, err = s.service.PeekNumber(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(int64(6), last)
}

func (s *InvoiceServiceSuite) TestRenderPDFFailureLeavesInvoiceIntact() {
	created, err := s.service.CreateInvoice(s.ctx, s.validRequest())
	s.Require().NoError(err)

	s.pdfGen.FailNext()
	_, err = s.service.RenderPDF(s.ctx, created.Number, "")
	s.Require().Error(err)
	s.True(ierr.IsRender(err))

	_, err = s.service.GetInvoice(s.ctx, created.Number)
	s.NoError(err, "a render failure must not affect the stored record")
}

func (s *InvoiceServiceSuite) TestRenderPDFNotFound() {
	_, err := s.service.RenderPDF(s.ctx, "9999", "")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestRenderPDFExplicitOutput() {
	created, err := s.service.CreateInvoice(s.ctx, s.validRequest())
	s.Require().NoError(err)

	out := filepath.Join(s.T().TempDir(), "exports", "invoice.pdf")
	path, err := s.service.RenderPDF(s.ctx, created.Number, out)
	s.Require().NoError(err)
	s.Equal(out, path)

	_, statErr := os.Stat(out)
	s.NoError(statErr)
}

func (s *InvoiceServiceSuite) TestCountInvoices() {
	for i := 0; i < 3; i++ {
		_, err := s.service.CreateInvoice(s.ctx, s.validRequest())
		s.Require().NoError(err)
	}

	count, err := s.service.CountInvoices(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, count)
}
