package pdf

import (
	"github.com/shopspring/decimal"

	"github.com/surfbill/surfbill/internal/config"
	"github.com/surfbill/surfbill/internal/domain/invoice"
)

// InvoiceData is the flattened document model handed to the renderer:
// one biller block from configuration, one recipient block and the line
// items from the invoice record. Equal inputs render equivalent output.
type InvoiceData struct {
	Title         string
	InvoiceNumber string
	IssuingDate   string
	Notes         string

	Subtotal   string
	VATPercent string
	VATAmount  string
	GrandTotal string

	Biller    BillerInfo
	Recipient RecipientInfo
	LineItems []LineItemData
}

// BillerInfo contains company information for the invoice issuer
type BillerInfo struct {
	Name       string
	Address    string
	City       string
	PostalCode string
	Country    string
	VATNumber  string
	Phone      string
	Email      string
	IBAN       string
}

// RecipientInfo contains customer information for the invoice recipient
type RecipientInfo struct {
	Name      string
	Street    string
	Email     string
	VATNumber string
	SDICode   string
}

// LineItemData represents an invoice line item for PDF generation
type LineItemData struct {
	Description string
	Quantity    string
	UnitPrice   string
	Total       string
}

// BuildInvoiceData maps a persisted invoice and the company
// configuration onto the renderer's document model
func BuildInvoiceData(cfg *config.Configuration, inv *invoice.Invoice) *InvoiceData {
	items := make([]LineItemData, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = LineItemData{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Total:       item.Total.StringFixed(2),
		}
	}

	return &InvoiceData{
		Title:         cfg.PDF.Title,
		InvoiceNumber: inv.Number,
		IssuingDate:   inv.Date.Format("02/01/2006"),
		Notes:         inv.Notes,
		Subtotal:      inv.TotalAmount.StringFixed(2),
		VATPercent:    formatVATPercent(cfg.Invoicing.VATRate),
		VATAmount:     inv.VATAmount.StringFixed(2),
		GrandTotal:    inv.GrandTotal().StringFixed(2),
		Biller: BillerInfo{
			Name:       cfg.Company.Name,
			Address:    cfg.Company.Address,
			City:       cfg.Company.City,
			PostalCode: cfg.Company.PostalCode,
			Country:    cfg.Company.Country,
			VATNumber:  cfg.Company.VATNumber,
			Phone:      cfg.Company.Phone,
			Email:      cfg.Company.Email,
			IBAN:       cfg.Company.IBAN,
		},
		Recipient: RecipientInfo{
			Name:      inv.Customer.Name,
			Street:    inv.Customer.Street,
			Email:     inv.Customer.Email,
			VATNumber: inv.Customer.VATNumber,
			SDICode:   inv.Customer.SDICode,
		},
		LineItems: items,
	}
}

func formatVATPercent(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).String()
}
