// Package events publishes payment lifecycle events onto the task queue.
//
// Payloads carry the masked account hint only; raw account numbers never
// enter the queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// CaptureEventTask is enqueued for every concluded capture attempt.
	CaptureEventTask = "turnstile:capture.event"

	// MessageSource identifies this gateway as the event origin.
	MessageSource = "turnstile-audirectdebit-gw"

	// MessageVersion tags the payload schema.
	MessageVersion = 1
)

// CapturePayload describes a concluded capture attempt.
type CapturePayload struct {
	Version         int       `json:"version"`
	Source          string    `json:"source"`
	TID             int32     `json:"tid"`
	AccountID       string    `json:"accountId"`
	PaymentMethodID string    `json:"paymentMethodId"`
	Status          string    `json:"status"`
	Hint            string    `json:"hint,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// Producer enqueues gateway events. A nil Producer drops events, so the
// gateway can run without a queue in development.
type Producer struct {
	client *asynq.Client
}

// NewProducer wraps an asynq client.
func NewProducer(client *asynq.Client) *Producer {
	return &Producer{client: client}
}

// CaptureEvent publishes a capture outcome. Delivery is best-effort from the
// gateway's perspective; the capture result has already been decided.
func (p *Producer) CaptureEvent(ctx context.Context, payload CapturePayload) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload.Version = MessageVersion
	payload.Source = MessageSource
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal capture event: %w", err)
	}
	task := asynq.NewTask(CaptureEventTask, data)
	if _, err := p.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue capture event: %w", err)
	}
	return nil
}
