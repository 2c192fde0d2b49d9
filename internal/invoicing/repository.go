package invoicing

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines read access and the transactional entry point.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)
	ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
}

// TxRepository exposes the mutations that must run inside one transaction.
// Every item mutation is followed by UpdateDerived before commit, so readers
// never observe a stale invoice total.
type TxRepository interface {
	// LockInvoice verifies the invoice exists and holds its row lock until
	// commit, serialising recalculation per invoice.
	LockInvoice(ctx context.Context, id int64) error
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (int64, error)
	UpdateInvoice(ctx context.Context, id int64, patch UpdateInvoiceInput) (int64, error)
	// CancelInvoice flips status to cancelled for a not-yet-cancelled
	// invoice and reports the number of rows affected.
	CancelInvoice(ctx context.Context, id int64) (int64, error)
	GetInvoiceStatus(ctx context.Context, id int64) (InvoiceStatus, error)
	InsertItem(ctx context.Context, item InvoiceItem) (int64, error)
	DeleteItems(ctx context.Context, invoiceID int64) (int64, error)
	// SumItems returns the exact subtotal and aggregate quantity of the
	// invoice's current items.
	SumItems(ctx context.Context, invoiceID int64) (decimal.Decimal, int64, error)
	UpdateDerived(ctx context.Context, invoiceID int64, cost decimal.Decimal, quantity int64) error
}
