// Package worker consumes gateway events from the task queue and records
// them in the audit trail.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/audit"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/events"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	repo *audit.Repository
	log  *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(repo *audit.Repository, log *slog.Logger) *Processor {
	return &Processor{repo: repo, log: log}
}

// Handler registers the capture event handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(events.CaptureEventTask, p.handleCaptureEvent)
	return mux
}

func (p *Processor) handleCaptureEvent(ctx context.Context, task *asynq.Task) error {
	var payload events.CapturePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode capture event: %w", err)
	}
	rec := audit.Record{
		TID:             payload.TID,
		AccountID:       payload.AccountID,
		PaymentMethodID: payload.PaymentMethodID,
		Status:          payload.Status,
		Hint:            payload.Hint,
		OccurredAt:      payload.OccurredAt,
	}
	if err := p.repo.Insert(ctx, &rec); err != nil {
		p.log.ErrorContext(ctx, "record capture event", "tid", payload.TID, "error", err)
		return err
	}
	p.log.InfoContext(ctx, "capture event recorded",
		"id", rec.ID, "tid", rec.TID, "status", rec.Status)
	return nil
}
