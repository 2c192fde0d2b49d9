// Package notify delivers invoice lifecycle notifications. Delivery is
// fire-and-forget: a failed notification never fails the invoice operation
// that triggered it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event names carried in notification documents.
const (
	EventInvoiceCreated   = "invoice.created"
	EventInvoiceUpdated   = "invoice.updated"
	EventInvoiceCancelled = "invoice.cancelled"
)

// Notification is the stored document.
type Notification struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	InvoiceID int64     `json:"invoice_id"`
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists notification documents in Redis with a bounded lifetime.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore builds a Store. ttl bounds how long documents are retained.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func docKey(id string) string {
	return "notify:doc:" + id
}

func recipientKey(recipient string) string {
	return "notify:recipient:" + recipient
}

// Save writes one notification document and indexes it per recipient.
func (s *Store) Save(ctx context.Context, n Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docKey(n.ID), data, s.ttl)
	pipe.LPush(ctx, recipientKey(n.Recipient), n.ID)
	pipe.Expire(ctx, recipientKey(n.Recipient), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store notification: %w", err)
	}
	return n.ID, nil
}

// Get fetches one notification by id. Returns redis.Nil when expired or
// unknown.
func (s *Store) Get(ctx context.Context, id string) (*Notification, error) {
	data, err := s.client.Get(ctx, docKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification %s: %w", id, err)
	}
	return &n, nil
}

// ListByRecipient returns the newest notifications for a recipient, capped at
// limit. Documents that already expired are skipped silently.
func (s *Store) ListByRecipient(ctx context.Context, recipient string, limit int64) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.LRange(ctx, recipientKey(recipient), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(ids))
	for _, id := range ids {
		n, err := s.Get(ctx, id)
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}
