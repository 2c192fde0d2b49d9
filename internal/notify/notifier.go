package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/parcelpost/parcelpost/internal/invoicing"
)

// Producer enqueues notification tasks for invoice lifecycle events. It
// implements invoicing.Notifier. Enqueue failures are logged and swallowed.
type Producer struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewProducer builds a Producer on top of an Asynq client.
func NewProducer(client *asynq.Client, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{client: client, logger: logger}
}

// Close releases the underlying Asynq client.
func (p *Producer) Close() error {
	return p.client.Close()
}

func (p *Producer) InvoiceCreated(ctx context.Context, inv *invoicing.Invoice) {
	p.enqueue(ctx, SendPayload{
		Event:     EventInvoiceCreated,
		InvoiceID: inv.ID,
		Recipient: inv.Contact,
		Message:   fmt.Sprintf("Invoice %d created for %s", inv.ID, inv.Name),
	})
}

func (p *Producer) InvoiceUpdated(ctx context.Context, inv *invoicing.Invoice) {
	p.enqueue(ctx, SendPayload{
		Event:     EventInvoiceUpdated,
		InvoiceID: inv.ID,
		Recipient: inv.Contact,
		Message:   fmt.Sprintf("Invoice %d updated, current total %s", inv.ID, inv.Cost.StringFixed(2)),
	})
}

func (p *Producer) InvoiceCancelled(ctx context.Context, inv *invoicing.Invoice) {
	p.enqueue(ctx, SendPayload{
		Event:     EventInvoiceCancelled,
		InvoiceID: inv.ID,
		Recipient: inv.Contact,
		Message:   fmt.Sprintf("Invoice %d cancelled", inv.ID),
	})
}

func (p *Producer) enqueue(ctx context.Context, payload SendPayload) {
	task, err := NewSendTask(payload)
	if err != nil {
		p.logger.Warn("build notification task", slog.Any("error", err))
		return
	}
	if _, err := p.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		p.logger.Warn("enqueue notification",
			slog.String("event", payload.Event),
			slog.Int64("invoice_id", payload.InvoiceID),
			slog.Any("error", err))
	}
}
