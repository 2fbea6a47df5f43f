package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/surfbill/surfbill/internal/domain/invoice"
	"github.com/surfbill/surfbill/internal/validator"
)

// CreateInvoiceRequest carries shell input for a new invoice. The
// invoice number is never part of the request: it is assigned from the
// counter store at first save.
type CreateInvoiceRequest struct {
	// Series selects the numbering sequence (e.g. a fiscal year);
	// empty means the configured default series
	Series   string                  `validate:"omitempty,alphanum"`
	Date     time.Time
	Customer CustomerRequest         `validate:"required"`
	Items    []CreateLineItemRequest `validate:"required,min=1,dive"`
	Notes    string
}

type CustomerRequest struct {
	Name      string `validate:"required"`
	Street    string
	Email     string `validate:"omitempty,email"`
	VATNumber string
	SDICode   string
}

type CreateLineItemRequest struct {
	Description string `validate:"required"`
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Validate checks structural constraints via tags; semantic rules
// (positive quantities, non-negative prices) live on the domain model
func (r *CreateInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToCustomer maps the request onto the domain customer
func (r *CustomerRequest) ToCustomer() invoice.Customer {
	return invoice.Customer{
		Name:      r.Name,
		Street:    r.Street,
		Email:     r.Email,
		VATNumber: r.VATNumber,
		SDICode:   r.SDICode,
	}
}

// ToLineItems maps the request items onto domain line items; totals
// are derived later by ComputeTotals
func (r *CreateInvoiceRequest) ToLineItems() []invoice.LineItem {
	items := make([]invoice.LineItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = invoice.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	return items
}
