package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/tracer"
)

// DefaultStageTimeout bounds a single stage when none is configured.
const DefaultStageTimeout = 15 * time.Second

// Attempt records one stage tried during a fetch.
type Attempt struct {
	Stage    string
	Err      error
	Duration time.Duration
}

// Outcome is what a chain fetch produced. Batch is never nil.
type Outcome struct {
	Batch    *Batch
	Degraded bool
	// Err joins every stage failure when Degraded is set.
	Err      error
	Attempts []Attempt
}

// Error returns the display string for a degraded outcome, or "".
func (o *Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Chain tries its stages in order and returns the first batch any of them
// produces.
type Chain struct {
	stages  []Stage
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

func NewChain(logger *zap.Logger, m *metrics.Collector, timeout time.Duration, stages ...Stage) *Chain {
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &Chain{
		stages:  stages,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracer.Name),
	}
}

// Stages returns the configured stage names in order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// StageStates reports each stage's circuit state by name. Stages without a
// breaker are always "closed".
func (c *Chain) StageStates() map[string]string {
	states := make(map[string]string, len(c.stages))
	for _, s := range c.stages {
		state := "closed"
		if b, ok := s.(*Breaker); ok {
			state = b.State()
		}
		states[s.Name()] = state
	}
	return states
}

// Fetch never returns an error. When every stage fails, or ctx ends first,
// the outcome carries the demo dataset with Degraded set.
func (c *Chain) Fetch(ctx context.Context) *Outcome {
	out := &Outcome{}
	var errs []error

	for _, st := range c.stages {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		batch, d, err := c.try(ctx, st)
		out.Attempts = append(out.Attempts, Attempt{Stage: st.Name(), Err: err, Duration: d})

		if err == nil {
			if len(errs) > 0 {
				c.logger.Info("source fallback used",
					zap.String("stage", st.Name()),
					zap.Int("failed_stages", len(errs)),
				)
			}
			out.Batch = batch
			return out
		}

		errs = append(errs, fmt.Errorf("%s: %w", st.Name(), err))
		c.logger.Warn("source stage failed",
			zap.String("stage", st.Name()),
			zap.Duration("elapsed", d),
			zap.Error(err),
		)
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no sources configured"))
	}
	out.Batch = MockBatch()
	out.Degraded = true
	out.Err = errors.Join(errs...)
	c.logger.Error("all sources failed, serving demo data", zap.Error(out.Err))
	return out
}

func (c *Chain) try(ctx context.Context, st Stage) (*Batch, time.Duration, error) {
	ctx, span := c.tracer.Start(ctx, "source."+st.Name())
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	batch, err := st.Fetch(ctx)
	d := time.Since(start)

	if err == nil && batch == nil {
		err = ErrEmptyBatch
	}
	if err == nil && !batch.Format.IsValid() {
		err = fmt.Errorf("unknown batch format %q", batch.Format)
	}

	c.metrics.ObserveStage(st.Name(), d, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, d, err
	}

	if batch.Source == "" {
		batch.Source = st.Name()
	}
	span.SetAttributes(attribute.Int("source.rows", len(batch.Rows)))
	return batch, d, nil
}
