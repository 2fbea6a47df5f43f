package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/surfbill/surfbill/internal/config"
	"github.com/surfbill/surfbill/internal/counter"
	"github.com/surfbill/surfbill/internal/domain/invoice"
	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/logger"
	"github.com/surfbill/surfbill/internal/pdf"
	"github.com/surfbill/surfbill/internal/service"
	"github.com/surfbill/surfbill/internal/storage"
	"github.com/surfbill/surfbill/internal/types"
)

func main() {
	if err := run(os.Args); err != nil {
		if hint := ierr.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "error:", hint)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// app bundles everything a command needs once the instance lock is held
type app struct {
	cfg     *config.Configuration
	log     *logger.Logger
	lock    *storage.Lock
	service service.InvoiceService
}

func run(args []string) error {
	var a app

	cliApp := &cli.App{
		Name:  "surfbill",
		Usage: "invoice management for small windsurf-equipment businesses",
		Before: func(c *cli.Context) error {
			return a.init()
		},
		After: func(c *cli.Context) error {
			return a.close()
		},
		Commands: []*cli.Command{
			createCommand(&a),
			showCommand(&a),
			listCommand(&a),
			renderCommand(&a),
			peekCommand(&a),
			backupCommand(&a),
			rebuildIndexCommand(&a),
			companyCommand(&a),
		},
	}

	return cliApp.Run(args)
}

func (a *app) init() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}

	// one process owns the document store and counter file at a time
	lock, err := storage.AcquireLock(cfg.Storage.DataDir, storage.DefaultLockStaleAfter, log)
	if err != nil {
		return err
	}

	counterStore, err := counter.NewFileStore(cfg.Storage.DataDir, log)
	if err != nil {
		lock.Release()
		return err
	}

	store, err := storage.NewStore(cfg, log)
	if err != nil {
		lock.Release()
		return err
	}

	a.cfg = cfg
	a.log = log
	a.lock = lock
	a.service = service.NewInvoiceService(service.ServiceParams{
		Logger:      log,
		Config:      cfg,
		InvoiceRepo: store,
		Counter:     counterStore,
		PDF:         pdf.NewGenerator(cfg),
	})
	return nil
}

func (a *app) close() error {
	if a.lock == nil {
		return nil
	}
	return a.lock.Release()
}

func createCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "create a new invoice; the number is assigned from the counter",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "customer", Usage: "customer name", Required: true},
			&cli.StringFlag{Name: "street", Usage: "customer street address"},
			&cli.StringFlag{Name: "email", Usage: "customer email"},
			&cli.StringFlag{Name: "vat", Usage: "customer VAT number (partita IVA)"},
			&cli.StringFlag{Name: "sdi", Usage: "customer SDI code for electronic invoicing"},
			&cli.StringFlag{Name: "series", Usage: "numbering series, e.g. the fiscal year"},
			&cli.StringFlag{Name: "date", Usage: "issue date (YYYY-MM-DD), today when omitted"},
			&cli.StringFlag{Name: "notes", Usage: "free-text notes"},
			&cli.StringSliceFlag{
				Name:     "item",
				Usage:    `line item as "description:quantity:unit price", repeatable`,
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			req := service.CreateInvoiceRequest{
				Series: c.String("series"),
				Notes:  c.String("notes"),
				Customer: service.CustomerRequest{
					Name:      c.String("customer"),
					Street:    c.String("street"),
					Email:     c.String("email"),
					VATNumber: c.String("vat"),
					SDICode:   c.String("sdi"),
				},
			}

			if dateStr := c.String("date"); dateStr != "" {
				date, err := time.Parse(invoice.DateFormat, dateStr)
				if err != nil {
					return ierr.WithError(err).
						WithHintf("date %q is not in YYYY-MM-DD form", dateStr).
						Mark(ierr.ErrValidation)
				}
				req.Date = date
			}

			for _, spec := range c.StringSlice("item") {
				item, err := parseItem(spec)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
			}

			inv, err := a.service.CreateInvoice(c.Context, req)
			if err != nil {
				return err
			}

			fmt.Printf("created invoice %s (total %s EUR, VAT %s EUR)\n",
				inv.Number, inv.TotalAmount.StringFixed(2), inv.VATAmount.StringFixed(2))
			return nil
		},
	}
}

func showCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "print one invoice",
		ArgsUsage: "<number>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return ierr.NewError("missing invoice number").
					WithHint("usage: surfbill show <number>").
					Mark(ierr.ErrValidation)
			}

			inv, err := a.service.GetInvoice(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			fmt.Printf("Invoice %s  (%s)\n", inv.Number, inv.Date.Format(invoice.DateFormat))
			fmt.Printf("Customer: %s\n", inv.Customer.Name)
			if inv.Customer.VATNumber != "" {
				fmt.Printf("P.IVA:    %s\n", inv.Customer.VATNumber)
			}
			if inv.Customer.SDICode != "" {
				fmt.Printf("SDI:      %s\n", inv.Customer.SDICode)
			}
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DESCRIPTION\tQTY\tPRICE\tTOTAL")
			for _, item := range inv.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					item.Description,
					item.Quantity.String(),
					item.UnitPrice.StringFixed(2),
					item.Total.StringFixed(2))
			}
			w.Flush()

			fmt.Printf("\nSubtotal: %s EUR\n", inv.TotalAmount.StringFixed(2))
			fmt.Printf("VAT:      %s EUR\n", inv.VATAmount.StringFixed(2))
			fmt.Printf("Total:    %s EUR\n", inv.GrandTotal().StringFixed(2))
			if inv.Notes != "" {
				fmt.Printf("\nNotes: %s\n", inv.Notes)
			}
			return nil
		},
	}
}

func listCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list stored invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Usage: "substring filter over number, customer and notes"},
			&cli.StringFlag{Name: "sort", Usage: "sort key: date or number", Value: string(types.InvoiceSortByDate)},
		},
		Action: func(c *cli.Context) error {
			sortBy := types.InvoiceSortKey(c.String("sort"))
			if !sortBy.Validate() {
				return ierr.NewError("invalid sort key").
					WithHintf("sort must be %q or %q", types.InvoiceSortByDate, types.InvoiceSortByNumber).
					Mark(ierr.ErrValidation)
			}

			summaries, err := a.service.ListInvoices(c.Context, &types.InvoiceFilter{
				Query:  c.String("query"),
				SortBy: sortBy,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tDATE\tCUSTOMER\tTOTAL")
			for _, sum := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					sum.Number,
					sum.Date.Format(invoice.DateFormat),
					sum.CustomerName,
					sum.TotalAmount.StringFixed(2))
			}
			return w.Flush()
		},
	}
}

func renderCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "render a stored invoice to PDF",
		ArgsUsage: "<number>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Usage: "output file, defaults to the invoices directory"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return ierr.NewError("missing invoice number").
					WithHint("usage: surfbill render <number>").
					Mark(ierr.ErrValidation)
			}

			path, err := a.service.RenderPDF(c.Context, c.Args().First(), c.String("output"))
			if err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func peekCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "peek",
		Usage: "show the highest issued number without consuming one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "series", Usage: "numbering series"},
		},
		Action: func(c *cli.Context) error {
			last, err := a.service.PeekNumber(c.Context, c.String("series"))
			if err != nil {
				return err
			}
			fmt.Printf("last issued: %d, next: %d\n", last, last+1)
			return nil
		},
	}
}

func backupCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "copy all documents and the counter to a timestamped backup",
		Action: func(c *cli.Context) error {
			path, err := a.service.Backup(c.Context)
			if err != nil {
				return err
			}
			fmt.Println("backup written to", path)
			return nil
		},
	}
}

func rebuildIndexCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "rebuild-index",
		Usage: "recompute the invoice index from the document store",
		Action: func(c *cli.Context) error {
			if err := a.service.RebuildIndex(c.Context); err != nil {
				return err
			}
			count, err := a.service.CountInvoices(c.Context)
			if err != nil {
				return err
			}
			fmt.Printf("index rebuilt, %d documents\n", count)
			return nil
		},
	}
}

func companyCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "company",
		Usage: "show the configured company details used on invoices",
		Action: func(c *cli.Context) error {
			company := a.cfg.Company
			fmt.Println(company.Name)
			if company.Address != "" {
				fmt.Println(company.Address)
			}
			if company.City != "" {
				fmt.Printf("%s %s %s\n", company.PostalCode, company.City, company.Country)
			}
			if company.VATNumber != "" {
				fmt.Println("P.IVA:", company.VATNumber)
			}
			if company.SDI != "" {
				fmt.Println("SDI:", company.SDI)
			}
			if company.IBAN != "" {
				fmt.Println("IBAN:", company.IBAN)
			}
			return nil
		},
	}
}

// parseItem parses "description:quantity:unit price". Descriptions may
// contain colons, so the numeric fields are taken from the right.
func parseItem(spec string) (service.CreateLineItemRequest, error) {
	var item service.CreateLineItemRequest

	priceIdx := strings.LastIndex(spec, ":")
	if priceIdx <= 0 {
		return item, badItemSpec(spec)
	}
	qtyIdx := strings.LastIndex(spec[:priceIdx], ":")
	if qtyIdx <= 0 {
		return item, badItemSpec(spec)
	}

	qty, err := decimal.NewFromString(spec[qtyIdx+1 : priceIdx])
	if err != nil {
		return item, badItemSpec(spec)
	}
	price, err := decimal.NewFromString(spec[priceIdx+1:])
	if err != nil {
		return item, badItemSpec(spec)
	}

	item.Description = spec[:qtyIdx]
	item.Quantity = qty
	item.UnitPrice = price
	return item, nil
}

func badItemSpec(spec string) error {
	return ierr.NewError("invalid item spec").
		WithHintf(`item %q must be "description:quantity:unit price"`, spec).
		Mark(ierr.ErrValidation)
}
