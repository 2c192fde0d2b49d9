package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendNotification is the task type for delivering one
	// notification document.
	TaskTypeSendNotification = "notify:send"
)

// SendPayload describes one notification to deliver.
type SendPayload struct {
	Event     string `json:"event"`
	InvoiceID int64  `json:"invoice_id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// NewSendTask constructs an Asynq task.
func NewSendTask(payload SendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendNotification, data, asynq.Queue(QueueDefault)), nil
}

// SendJob processes TaskTypeSendNotification tasks by writing the document
// to the notification store.
type SendJob struct {
	store  *Store
	logger *slog.Logger
}

// NewSendJob builds the handler for notification delivery tasks.
func NewSendJob(store *Store, logger *slog.Logger) *SendJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendJob{store: store, logger: logger}
}

// Handle implements the asynq handler contract.
func (j *SendJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := j.store.Save(ctx, Notification{
		Event:     payload.Event,
		InvoiceID: payload.InvoiceID,
		Recipient: payload.Recipient,
		Message:   payload.Message,
	})
	if err != nil {
		return err
	}
	j.logger.Info("notification delivered",
		slog.String("notification_id", id),
		slog.String("event", payload.Event),
		slog.Int64("invoice_id", payload.InvoiceID))
	return nil
}
