package invoicing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

// Notifier publishes invoice lifecycle events. Implementations must not block
// the request path; failures are the notifier's problem, not the caller's.
type Notifier interface {
	InvoiceCreated(ctx context.Context, inv *Invoice)
	InvoiceUpdated(ctx context.Context, inv *Invoice)
	InvoiceCancelled(ctx context.Context, inv *Invoice)
}

// RecalcCounter records committed recalculations.
type RecalcCounter interface {
	RecalculationCommitted()
}

// Service implements the invoicing use cases on top of the repository.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	notifier Notifier
	metrics  RecalcCounter
}

// NewService wires the invoicing service. notifier and metrics may be nil.
func NewService(repo Repository, logger *slog.Logger, notifier Notifier, metrics RecalcCounter) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, notifier: notifier, metrics: metrics}
}

// CreateInvoice creates an invoice header. The derived quantity and cost
// always start at zero regardless of caller input.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*Invoice, error) {
	if input.Status == "" {
		input.Status = StatusPending
	}
	if err := validateHeader(input.Status, input.Type, input.PayMethod); err != nil {
		return nil, err
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.CreateInvoice(ctx, input)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice created", slog.Int64("invoice_id", id))
	if s.notifier != nil {
		s.notifier.InvoiceCreated(ctx, inv)
	}
	return inv, nil
}

// GetInvoice returns an invoice header with its items.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, []InvoiceItem, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inv, items, nil
}

// ListInvoices returns all invoice headers, cancelled ones included.
func (s *Service) ListInvoices(ctx context.Context) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

// UpdateInvoice patches header fields. Nil fields keep their stored value and
// the derived quantity/cost are untouched.
func (s *Service) UpdateInvoice(ctx context.Context, id int64, patch UpdateInvoiceInput) (*Invoice, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, *patch.Status)
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice type %q", httpx.ErrValidation, *patch.Type)
	}
	if patch.PayMethod != nil && !patch.PayMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown pay method %q", httpx.ErrValidation, *patch.PayMethod)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockInvoice(ctx, id); err != nil {
			return err
		}
		if patch.Status != nil {
			current, err := tx.GetInvoiceStatus(ctx, id)
			if err != nil {
				return err
			}
			if !current.CanTransitionTo(*patch.Status) {
				return fmt.Errorf("%w: status cannot change from %q to %q", httpx.ErrValidation, current, *patch.Status)
			}
		}
		_, err := tx.UpdateInvoice(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice %d: %w", id, err)
	}
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.InvoiceUpdated(ctx, inv)
	}
	return inv, nil
}

// DeleteInvoice soft-deletes: the row stays, its status flips to cancelled
// and its items survive untouched. Cancelling an already cancelled or missing
// invoice fails with not found.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.CancelInvoice(ctx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("invoice %d: %w", id, httpx.ErrNotFound)
		}
		status, err := tx.GetInvoiceStatus(ctx, id)
		if err != nil {
			return err
		}
		if status != StatusCancelled {
			return fmt.Errorf("invoice %d: cancel not applied, status %q", id, status)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("invoice cancelled", slog.Int64("invoice_id", id))
	s.notifyCancelled(ctx, id)
	return nil
}

// AddItem appends one line item and recalculates the invoice totals in the
// same transaction.
func (s *Service) AddItem(ctx context.Context, invoiceID int64, input AddItemInput) (*InvoiceItem, error) {
	if err := validateItem(input); err != nil {
		return nil, err
	}
	item := InvoiceItem{
		InvoiceID:     invoiceID,
		ShipmentType:  input.ShipmentType,
		Weight:        input.Weight,
		DeliverySpeed: input.DeliverySpeed,
		Quantity:      input.Quantity,
		UnitPrice:     input.UnitPrice,
		LineTotal:     LineTotal(input.Quantity, input.UnitPrice),
		Notes:         input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockInvoice(ctx, invoiceID); err != nil {
			return err
		}
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return s.recalculate(ctx, tx, invoiceID)
	})
	if err != nil {
		return nil, fmt.Errorf("add item to invoice %d: %w", invoiceID, err)
	}
	s.notifyUpdated(ctx, invoiceID)
	return &item, nil
}

// ListItems returns the line items of an existing invoice.
func (s *Service) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, invoiceID)
}

// ReplaceItems swaps the whole item set in one transaction: delete every
// current item, insert the new ones, recalculate once. An empty input list is
// valid and zeroes the invoice totals.
func (s *Service) ReplaceItems(ctx context.Context, invoiceID int64, inputs []AddItemInput) ([]InvoiceItem, error) {
	for i, input := range inputs {
		if err := validateItem(input); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockInvoice(ctx, invoiceID); err != nil {
			return err
		}
		if _, err := tx.DeleteItems(ctx, invoiceID); err != nil {
			return err
		}
		for _, input := range inputs {
			item := InvoiceItem{
				InvoiceID:     invoiceID,
				ShipmentType:  input.ShipmentType,
				Weight:        input.Weight,
				DeliverySpeed: input.DeliverySpeed,
				Quantity:      input.Quantity,
				UnitPrice:     input.UnitPrice,
				LineTotal:     LineTotal(input.Quantity, input.UnitPrice),
				Notes:         input.Notes,
			}
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		return s.recalculate(ctx, tx, invoiceID)
	})
	if err != nil {
		return nil, fmt.Errorf("replace items of invoice %d: %w", invoiceID, err)
	}
	s.notifyUpdated(ctx, invoiceID)
	return s.repo.ListItems(ctx, invoiceID)
}

// DeleteAllItems removes every line item and zeroes the derived totals.
func (s *Service) DeleteAllItems(ctx context.Context, invoiceID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockInvoice(ctx, invoiceID); err != nil {
			return err
		}
		if _, err := tx.DeleteItems(ctx, invoiceID); err != nil {
			return err
		}
		return s.recalculate(ctx, tx, invoiceID)
	})
	if err != nil {
		return fmt.Errorf("clear items of invoice %d: %w", invoiceID, err)
	}
	s.notifyUpdated(ctx, invoiceID)
	return nil
}

// recalculate rewrites the invoice's derived columns from its current item
// set. Must run on the same transaction that mutated the items, after the
// invoice row lock is held.
func (s *Service) recalculate(ctx context.Context, tx TxRepository, invoiceID int64) error {
	subtotal, quantity, err := tx.SumItems(ctx, invoiceID)
	if err != nil {
		return err
	}
	_, total := Totals(subtotal)
	if err := tx.UpdateDerived(ctx, invoiceID, total, quantity); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecalculationCommitted()
	}
	return nil
}

func (s *Service) notifyUpdated(ctx context.Context, invoiceID int64) {
	if s.notifier == nil {
		return
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		s.logger.Warn("skip update notification", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
		return
	}
	s.notifier.InvoiceUpdated(ctx, inv)
}

func (s *Service) notifyCancelled(ctx context.Context, invoiceID int64) {
	if s.notifier == nil {
		return
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		s.logger.Warn("skip cancel notification", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
		return
	}
	s.notifier.InvoiceCancelled(ctx, inv)
}

func validateHeader(status InvoiceStatus, typ InvoiceType, method PayMethod) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status)
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown invoice type %q", httpx.ErrValidation, typ)
	}
	if !method.Valid() {
		return fmt.Errorf("%w: unknown pay method %q", httpx.ErrValidation, method)
	}
	return nil
}

func validateItem(input AddItemInput) error {
	if input.ShipmentType == "" {
		return fmt.Errorf("%w: shipment type is required", httpx.ErrValidation)
	}
	if input.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", httpx.ErrValidation)
	}
	if input.UnitPrice.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: unit price must not be negative", httpx.ErrValidation)
	}
	if input.Weight != nil && !input.Weight.IsPositive() {
		return fmt.Errorf("%w: weight must be positive", httpx.ErrValidation)
	}
	return nil
}
