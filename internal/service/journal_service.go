package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/metrics"
)

type SyncRunRepository interface {
	CreateBatch(ctx context.Context, runs []*domain.SyncRun) error
}

// SyncJournal persists one row per sync pass in the background so a slow
// database never delays the pass itself. Without a repository it only logs.
type SyncJournal struct {
	repo    SyncRunRepository
	metrics *metrics.Collector
	log     *zap.Logger
	entries chan *domain.SyncRun
	done    chan struct{}
}

const (
	journalBufferSize = 1_000
	journalBatchSize  = 50
)

func NewSyncJournal(repo SyncRunRepository, m *metrics.Collector, log *zap.Logger) *SyncJournal {
	j := &SyncJournal{
		repo:    repo,
		metrics: m,
		log:     log,
		entries: make(chan *domain.SyncRun, journalBufferSize),
		done:    make(chan struct{}),
	}
	go j.worker()
	return j
}

// Record enqueues a run. If the buffer is full the run is dropped.
func (j *SyncJournal) Record(run *domain.SyncRun) {
	select {
	case j.entries <- run:
	default:
		if j.metrics != nil {
			j.metrics.JournalBufferDropped.Inc()
		}
		j.log.Warn("sync journal buffer full, dropping entry",
			zap.String("source", run.Source),
			zap.String("trigger", string(run.Trigger)),
		)
	}
}

func (j *SyncJournal) Shutdown() {
	close(j.entries)
	select {
	case <-j.done:
	case <-time.After(10 * time.Second):
		j.log.Warn("sync journal shutdown timed out; some entries may be lost")
	}
}

func (j *SyncJournal) worker() {
	defer close(j.done)

	batch := make([]*domain.SyncRun, 0, journalBatchSize)
	for run := range j.entries {
		batch = append(batch, run)
		// drain whatever else is already queued
	drain:
		for len(batch) < journalBatchSize {
			select {
			case next, ok := <-j.entries:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		j.flush(batch)
		batch = batch[:0]
	}
}

func (j *SyncJournal) flush(batch []*domain.SyncRun) {
	for _, run := range batch {
		j.log.Info("sync run",
			zap.String("trigger", string(run.Trigger)),
			zap.String("source", run.Source),
			zap.Bool("degraded", run.Degraded),
			zap.Int("total", run.Total),
			zap.Int("new", run.NewCount),
			zap.Int("updated", run.Updated),
			zap.Int("dropped", run.Dropped),
			zap.Int64("duration_ms", run.DurationMS),
		)
	}
	if j.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.repo.CreateBatch(ctx, batch); err != nil {
		j.log.Error("failed to persist sync runs", zap.Int("count", len(batch)), zap.Error(err))
		return
	}
	if j.metrics != nil {
		j.metrics.JournalEntriesTotal.Add(float64(len(batch)))
	}
}
