// Package export produces downloadable snapshots of the invoice ledger.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/parcelpost/parcelpost/internal/invoicing"
)

// InvoiceSource is the slice of the invoicing repository the exporter needs.
type InvoiceSource interface {
	ListInvoices(ctx context.Context) ([]invoicing.Invoice, error)
	ListItems(ctx context.Context, invoiceID int64) ([]invoicing.InvoiceItem, error)
}

// InvoiceExport is one invoice with its items and the totals broken out.
// Subtotal/Tax/Total are recomputed from the items; StoredCostMismatch is set
// when that recomputed total disagrees with the cost persisted on the header.
type InvoiceExport struct {
	invoicing.Invoice
	Items              []invoicing.InvoiceItem `json:"items"`
	Subtotal           decimal.Decimal         `json:"subtotal"`
	Tax                decimal.Decimal         `json:"tax"`
	Total              decimal.Decimal         `json:"total"`
	StoredCostMismatch bool                    `json:"stored_cost_mismatch,omitempty"`
}

// Report is a full ledger snapshot.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Invoices    []InvoiceExport `json:"invoices"`
	Summary     Summary         `json:"summary"`
}

// Summary aggregates the snapshot.
type Summary struct {
	InvoiceCount   int             `json:"invoice_count"`
	CancelledCount int             `json:"cancelled_count"`
	ItemCount      int             `json:"item_count"`
	MismatchCount  int             `json:"mismatch_count"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	Headline       string          `json:"headline"`
}

// Service builds exports. Concurrent requests for the same snapshot share one
// build via singleflight.
type Service struct {
	source  InvoiceSource
	group   singleflight.Group
	printer *message.Printer
}

// NewService wires the export service.
func NewService(source InvoiceSource) *Service {
	return &Service{source: source, printer: message.NewPrinter(language.English)}
}

// BuildReport assembles the ledger snapshot. Item sets are fetched
// concurrently, bounded to keep connection pressure sane.
func (s *Service) BuildReport(ctx context.Context) (*Report, error) {
	v, err, _ := s.group.Do("report", func() (interface{}, error) {
		return s.buildReport(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (s *Service) buildReport(ctx context.Context) (*Report, error) {
	invoices, err := s.source.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	exports := make([]InvoiceExport, len(invoices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, inv := range invoices {
		i, inv := i, inv
		g.Go(func() error {
			items, err := s.source.ListItems(gctx, inv.ID)
			if err != nil {
				return fmt.Errorf("list items of invoice %d: %w", inv.ID, err)
			}
			subtotal := invoicing.Subtotal(items)
			tax, total := invoicing.Totals(subtotal)
			exports[i] = InvoiceExport{
				Invoice:            inv,
				Items:              items,
				Subtotal:           subtotal,
				Tax:                tax,
				Total:              total,
				StoredCostMismatch: !total.Equal(inv.Cost),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summary{InvoiceCount: len(exports), GrandTotal: decimal.Zero}
	for _, e := range exports {
		summary.ItemCount += len(e.Items)
		if e.StoredCostMismatch {
			summary.MismatchCount++
		}
		if e.Status == invoicing.StatusCancelled {
			summary.CancelledCount++
			continue
		}
		summary.GrandTotal = summary.GrandTotal.Add(e.Total)
	}
	summary.Headline = s.printer.Sprintf("%d invoices, %d items, active total %s",
		summary.InvoiceCount, summary.ItemCount, summary.GrandTotal.StringFixed(2))

	return &Report{
		GeneratedAt: time.Now().UTC(),
		Invoices:    exports,
		Summary:     summary,
	}, nil
}

var csvHeader = []string{
	"id", "status", "type", "paid", "pay_method", "name", "contact",
	"item_count", "quantity", "subtotal", "tax", "total",
	"stored_cost", "stored_cost_mismatch", "created_at",
}

// CSV renders the snapshot as one row per invoice.
func (s *Service) CSV(ctx context.Context) ([]byte, error) {
	report, err := s.BuildReport(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range report.Invoices {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			string(e.Status),
			string(e.Type),
			strconv.FormatBool(e.Paid),
			string(e.PayMethod),
			e.Name,
			e.Contact,
			strconv.Itoa(len(e.Items)),
			strconv.FormatInt(e.Quantity, 10),
			e.Subtotal.StringFixed(2),
			e.Tax.StringFixed(2),
			e.Total.StringFixed(2),
			e.Cost.StringFixed(2),
			strconv.FormatBool(e.StoredCostMismatch),
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSON renders the full snapshot, items included.
func (s *Service) JSON(ctx context.Context) ([]byte, error) {
	report, err := s.BuildReport(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(report, "", "  ")
}
