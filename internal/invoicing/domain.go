// Package invoicing owns invoice headers, their line items, and the
// recalculation rules that keep the derived invoice totals consistent.
package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "pending"
	StatusCompleted InvoiceStatus = "completed"
	StatusCancelled InvoiceStatus = "cancelled"
	StatusRefunded  InvoiceStatus = "refunded"
)

// InvoiceType enumerates when an invoice is settled.
type InvoiceType string

const (
	TypePaidOnSend     InvoiceType = "paid_on_send"
	TypePaidOnDelivery InvoiceType = "paid_on_delivery"
)

// PayMethod enumerates accepted payment methods.
type PayMethod string

const (
	PayCash          PayMethod = "cash"
	PayCard          PayMethod = "card"
	PayMobilePayment PayMethod = "mobile_payment"
	PayAccount       PayMethod = "account"
)

// Invoice model. Quantity and Cost are derived from the item set and are
// written only by the recalculation path, never by callers.
type Invoice struct {
	ID          int64           `json:"id"`
	WarehouseID *int64          `json:"warehouse_id,omitempty"`
	StaffID     *int64          `json:"staff_id,omitempty"`
	ClientID    *int64          `json:"client_id,omitempty"`
	Status      InvoiceStatus   `json:"status"`
	Type        InvoiceType     `json:"type"`
	Paid        bool            `json:"paid"`
	PayMethod   PayMethod       `json:"pay_method"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Contact     string          `json:"contact"`
	Quantity    int64           `json:"quantity"`
	Cost        decimal.Decimal `json:"cost"`
	CreatedAt   time.Time       `json:"created_at"`
}

// InvoiceItem model. LineTotal is derived from Quantity and UnitPrice on
// every insert.
type InvoiceItem struct {
	ID            int64            `json:"id"`
	InvoiceID     int64            `json:"invoice_id"`
	ShipmentType  string           `json:"shipment_type"`
	Weight        *decimal.Decimal `json:"weight,omitempty"`
	DeliverySpeed string           `json:"delivery_speed"`
	Quantity      int64            `json:"quantity"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	LineTotal     decimal.Decimal  `json:"line_total"`
	Notes         *string          `json:"notes,omitempty"`
}

// CreateInvoiceInput for creating invoice headers. Quantity and cost are not
// accepted; new invoices always start at zero until items are added.
type CreateInvoiceInput struct {
	WarehouseID *int64
	StaffID     *int64
	ClientID    *int64
	Status      InvoiceStatus
	Type        InvoiceType
	Paid        bool
	PayMethod   PayMethod
	Name        string
	Address     string
	Contact     string
}

// UpdateInvoiceInput carries patch semantics: a nil field keeps the current
// value. Derived cost/quantity cannot be supplied here either.
type UpdateInvoiceInput struct {
	WarehouseID *int64
	StaffID     *int64
	ClientID    *int64
	Status      *InvoiceStatus
	Type        *InvoiceType
	Paid        *bool
	PayMethod   *PayMethod
	Name        *string
	Address     *string
	Contact     *string
}

// AddItemInput for creating one line item.
type AddItemInput struct {
	ShipmentType  string
	Weight        *decimal.Decimal
	DeliverySpeed string
	Quantity      int64
	UnitPrice     decimal.Decimal
	Notes         *string
}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status change is allowed. Transitions
// originate from pending; cancelled, completed and refunded are terminal for
// header updates. Re-stating the current status is always allowed.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	if s == next {
		return true
	}
	return s == StatusPending
}

// Valid reports whether t is a known invoice type.
func (t InvoiceType) Valid() bool {
	return t == TypePaidOnSend || t == TypePaidOnDelivery
}

// Valid reports whether m is a known payment method.
func (m PayMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayMobilePayment, PayAccount:
		return true
	}
	return false
}
