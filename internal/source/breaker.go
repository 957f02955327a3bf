package source

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Breaker wraps a remote stage in a circuit breaker. After a run of
// consecutive failures the stage is skipped immediately until the cooldown
// has passed, instead of costing every sync pass a full timeout.
type Breaker struct {
	stage Stage
	cb    *gobreaker.CircuitBreaker[*Batch]
}

func NewBreaker(stage Stage, failures uint32, cooldown time.Duration, logger *zap.Logger) *Breaker {
	if failures == 0 {
		failures = 1
	}

	cb := gobreaker.NewCircuitBreaker[*Batch](gobreaker.Settings{
		Name:        stage.Name(),
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// An empty sheet or a cancelled pass says nothing about the
		// source's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrEmptyBatch) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("source breaker state changed",
				zap.String("stage", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Breaker{stage: stage, cb: cb}
}

func (b *Breaker) Name() string { return b.stage.Name() }

func (b *Breaker) Fetch(ctx context.Context) (*Batch, error) {
	return b.cb.Execute(func() (*Batch, error) {
		return b.stage.Fetch(ctx)
	})
}

// State reports the breaker state for status endpoints.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
