package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfbill/surfbill/internal/config"
	"github.com/surfbill/surfbill/internal/domain/invoice"
	"github.com/surfbill/surfbill/internal/types"
)

func testInvoice() *invoice.Invoice {
	inv := &invoice.Invoice{
		Number: "0001",
		Series: types.SeriesDefault,
		Date:   invoice.NewDate(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
		Customer: invoice.Customer{
			Name:      "Mario Rossi",
			Street:    "Via Garibaldi 1, Cagliari",
			VATNumber: "IT01234567890",
			SDICode:   "ABC1234",
		},
		Items: []invoice.LineItem{
			{
				Description: "Windsurf sail 5.2",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.RequireFromString("10.00"),
			},
			{
				Description: "Rigging service",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.RequireFromString("35.50"),
			},
		},
		Notes: "Pagamento entro 30 giorni",
	}
	inv.ComputeTotals(decimal.NewFromFloat(0.22))
	return inv
}

func TestRenderWritesPDF(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Company.Name = "Pension Flora"
	cfg.Company.VATNumber = "IT09876543210"
	cfg.Company.IBAN = "IT60X0542811101000000123456"

	gen := NewGenerator(cfg)
	out := filepath.Join(t.TempDir(), "0001.pdf")

	require.NoError(t, gen.Render(context.Background(), testInvoice(), out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]), "output should be a pdf document")
}

func TestRenderFailsOnBadPath(t *testing.T) {
	gen := NewGenerator(config.GetDefaultConfig())

	err := gen.Render(context.Background(), testInvoice(),
		filepath.Join(t.TempDir(), "missing-dir", "0001.pdf"))
	require.Error(t, err)
}

func TestBuildInvoiceData(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Company.Name = "Pension Flora"

	data := BuildInvoiceData(cfg, testInvoice())

	assert.Equal(t, "0001", data.InvoiceNumber)
	assert.Equal(t, "14/03/2026", data.IssuingDate)
	assert.Equal(t, "Pension Flora", data.Biller.Name)
	assert.Equal(t, "Mario Rossi", data.Recipient.Name)
	assert.Equal(t, "ABC1234", data.Recipient.SDICode)
	assert.Equal(t, "22", data.VATPercent)
	assert.Equal(t, "55.50", data.Subtotal)
	assert.Equal(t, "12.21", data.VATAmount)
	assert.Equal(t, "67.71", data.GrandTotal)
	require.Len(t, data.LineItems, 2)
	assert.Equal(t, "10.00", data.LineItems[0].UnitPrice)
	assert.Equal(t, "20.00", data.LineItems[0].Total)
}

func TestRenderIsDeterministicForEqualInputs(t *testing.T) {
	cfg := config.GetDefaultConfig()
	gen := NewGenerator(cfg)
	dir := t.TempDir()

	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, gen.Render(context.Background(), testInvoice(), a))
	require.NoError(t, gen.Render(context.Background(), testInvoice(), b))

	dataA, err := os.ReadFile(a)
	require.NoError(t, err)
	dataB, err := os.ReadFile(b)
	require.NoError(t, err)

	// creation timestamps aside, equal inputs produce output of equal shape
	assert.Equal(t, len(dataA), len(dataB))
}
