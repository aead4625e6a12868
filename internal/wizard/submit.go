package wizard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// Submitter hands a completed application over for processing
type Submitter interface {
	Submit(ctx context.Context, data models.FormData) (models.Receipt, error)
}

// SimulatedSubmitter accepts every application after a fixed delay.
// There is no real backend behind it and no retry.
type SimulatedSubmitter struct {
	Delay time.Duration
}

// Submit implements Submitter
func (s SimulatedSubmitter) Submit(ctx context.Context, data models.FormData) (models.Receipt, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}

	return models.Receipt{
		ID:          uuid.New().String(),
		SubmittedAt: time.Now().UTC(),
		Data:        data.Clone(),
	}, nil
}
