package pdf

import (
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/surfbill/surfbill/internal/config"
	"github.com/surfbill/surfbill/internal/domain/invoice"
	ierr "github.com/surfbill/surfbill/internal/errors"
)

// Generator defines the interface for PDF generation operations
type Generator interface {
	// Render writes the invoice as a paginated A4 document to
	// outputPath. The caller ensures the parent directory exists and
	// the invoice number is path-safe.
	Render(ctx context.Context, inv *invoice.Invoice, outputPath string) error
}

type service struct {
	cfg *config.Configuration
}

// NewGenerator creates a new PDF generator
func NewGenerator(cfg *config.Configuration) Generator {
	return &service{cfg: cfg}
}

func (s *service) Render(ctx context.Context, inv *invoice.Invoice, outputPath string) error {
	data := BuildInvoiceData(s.cfg, inv)

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(
		cmToMM(s.cfg.PDF.MarginLeft),
		cmToMM(s.cfg.PDF.MarginTop),
		cmToMM(s.cfg.PDF.MarginRight))
	doc.SetAutoPageBreak(true, cmToMM(s.cfg.PDF.MarginBottom))
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")
	base := s.cfg.PDF.FontSize
	if base <= 0 {
		base = 10
	}

	// title
	doc.SetFont("Helvetica", "B", base+14)
	doc.CellFormat(0, 12, tr(data.Title), "", 1, "C", false, 0, "")
	doc.Ln(4)

	// two-column header: biller left, invoice number and date right
	doc.SetFont("Helvetica", "B", base+4)
	doc.CellFormat(110, 7, tr(data.Biller.Name), "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "B", base+2)
	doc.CellFormat(0, 7, tr(fmt.Sprintf("N. %s", data.InvoiceNumber)), "", 1, "R", false, 0, "")

	doc.SetFont("Helvetica", "", base)
	left := billerLines(data.Biller)
	right := []string{fmt.Sprintf("Data: %s", data.IssuingDate)}
	for i := 0; i < len(left) || i < len(right); i++ {
		l, r := "", ""
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		doc.CellFormat(110, 5, tr(l), "", 0, "L", false, 0, "")
		doc.CellFormat(0, 5, tr(r), "", 1, "R", false, 0, "")
	}
	doc.Ln(6)

	// recipient block
	doc.SetFont("Helvetica", "B", base+1)
	doc.CellFormat(0, 6, tr("Cliente"), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", base)
	for _, line := range recipientLines(data.Recipient) {
		doc.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	doc.Ln(6)

	// items table
	doc.SetFont("Helvetica", "B", base)
	doc.SetFillColor(235, 235, 235)
	doc.CellFormat(90, 7, tr("Descrizione"), "1", 0, "L", true, 0, "")
	doc.CellFormat(25, 7, tr("Quantità"), "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 7, tr("Prezzo"), "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 7, tr("Totale"), "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", base)
	for _, item := range data.LineItems {
		doc.CellFormat(90, 6, tr(item.Description), "1", 0, "L", false, 0, "")
		doc.CellFormat(25, 6, item.Quantity, "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, item.UnitPrice, "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, item.Total, "1", 1, "R", false, 0, "")
	}
	doc.Ln(4)

	// totals block, right aligned
	totals := [][2]string{
		{"Imponibile", data.Subtotal},
		{fmt.Sprintf("IVA %s%%", data.VATPercent), data.VATAmount},
		{"Totale", data.GrandTotal},
	}
	for i, row := range totals {
		style := ""
		if i == len(totals)-1 {
			style = "B"
		}
		doc.SetFont("Helvetica", style, base)
		doc.CellFormat(115, 6, "", "", 0, "L", false, 0, "")
		doc.CellFormat(30, 6, tr(row[0]), "", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, tr(row[1]+" EUR"), "", 1, "R", false, 0, "")
	}

	if data.Notes != "" {
		doc.Ln(6)
		doc.SetFont("Helvetica", "B", base)
		doc.CellFormat(0, 6, tr("Note"), "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", base)
		doc.MultiCell(0, 5, tr(data.Notes), "", "L", false)
	}

	if data.Biller.IBAN != "" {
		doc.Ln(6)
		doc.SetFont("Helvetica", "", base-1)
		doc.CellFormat(0, 5, tr(fmt.Sprintf("IBAN: %s", data.Biller.IBAN)), "", 1, "L", false, 0, "")
	}

	if err := doc.OutputFileAndClose(outputPath); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to render invoice %s to %s", inv.Number, outputPath).
			Mark(ierr.ErrRender)
	}
	return nil
}

func billerLines(b BillerInfo) []string {
	var lines []string
	if b.Address != "" {
		lines = append(lines, b.Address)
	}
	if b.City != "" {
		city := b.City
		if b.PostalCode != "" {
			city = b.PostalCode + " " + city
		}
		if b.Country != "" {
			city += ", " + b.Country
		}
		lines = append(lines, city)
	}
	if b.VATNumber != "" {
		lines = append(lines, "P.IVA: "+b.VATNumber)
	}
	if b.Phone != "" {
		lines = append(lines, "Tel: "+b.Phone)
	}
	if b.Email != "" {
		lines = append(lines, b.Email)
	}
	return lines
}

func recipientLines(r RecipientInfo) []string {
	lines := []string{r.Name}
	if r.Street != "" {
		lines = append(lines, r.Street)
	}
	if r.Email != "" {
		lines = append(lines, r.Email)
	}
	if r.VATNumber != "" {
		lines = append(lines, "P.IVA: "+r.VATNumber)
	}
	if r.SDICode != "" {
		lines = append(lines, "Codice SDI: "+r.SDICode)
	}
	return lines
}

func cmToMM(cm float64) float64 {
	return cm * 10
}
