package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/reconcile"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/roster"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/source"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/tracer"
)

type Fetcher interface {
	Fetch(ctx context.Context) *source.Outcome
}

type CacheWriter interface {
	Save(batch *source.Batch, info source.ServerInfo) error
}

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	All      []appointment.Appointment
	New      []appointment.Appointment
	Updated  []appointment.Appointment
	Patients []*patient.Patient

	Source   string
	Degraded bool
	Error    string
	Dropped  int
	// Stats describes the snapshot after this pass.
	Stats reconcile.Stats

	Trigger  domain.SyncTrigger
	SyncedAt time.Time
	Duration time.Duration
}

// SyncStatus holds the counters reported by the sync-status endpoint.
type SyncStatus struct {
	TotalAppointments   int
	NewAppointments     int
	UpdatedAppointments int
	Connected           bool
	Server              string
	Database            string
	LastSync            time.Time
	LastSource          string
	LastError           string
}

type SyncOptions struct {
	Server   string
	Database string
	// Writer is nil when the clinic database is disabled.
	Writer appointment.StatusWriter
	// Cache is nil when no fallback file is configured.
	Cache CacheWriter
}

// SyncService runs the fetch, convert, reconcile and aggregate pipeline.
// Passes are serialised so the periodic loop and manual triggers share one
// snapshot.
type SyncService struct {
	fetcher  Fetcher
	adapter  *source.Adapter
	snapshot *reconcile.Snapshot
	journal  *SyncJournal
	opts     SyncOptions
	metrics  *metrics.Collector
	log      *zap.Logger
	tracer   trace.Tracer

	mu sync.Mutex

	latestMu sync.RWMutex
	latest   *SyncResult
}

func NewSyncService(
	fetcher Fetcher,
	adapter *source.Adapter,
	journal *SyncJournal,
	opts SyncOptions,
	m *metrics.Collector,
	log *zap.Logger,
) *SyncService {
	return &SyncService{
		fetcher:  fetcher,
		adapter:  adapter,
		snapshot: reconcile.NewSnapshot(),
		journal:  journal,
		opts:     opts,
		metrics:  m,
		log:      log,
		tracer:   otel.Tracer(tracer.Name),
	}
}

// Sync runs one pass and stores its result as the latest.
func (s *SyncService) Sync(ctx context.Context, trigger domain.SyncTrigger) *SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "sync.pass",
		trace.WithAttributes(attribute.String("sync.trigger", string(trigger))),
	)
	defer span.End()

	start := time.Now()
	out := s.fetcher.Fetch(ctx)
	conv := s.adapter.Convert(out.Batch)
	rec := s.snapshot.Reconcile(conv.Appointments)
	patients := roster.Aggregate(rec.All)

	res := &SyncResult{
		All:      rec.All,
		New:      rec.New,
		Updated:  rec.Updated,
		Patients: patients,
		Source:   out.Batch.Source,
		Degraded: out.Degraded,
		Error:    out.Error(),
		Dropped:  conv.Dropped,
		Stats:    s.snapshot.Stats(),
		Trigger:  trigger,
		SyncedAt: time.Now(),
	}

	if s.shouldCache(res) {
		info := source.ServerInfo{Server: s.opts.Server, Database: s.opts.Database, Connected: true}
		if err := s.opts.Cache.Save(out.Batch, info); err != nil {
			s.log.Warn("writing fallback file failed", zap.Error(err))
		}
	}

	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("sync.source", res.Source),
		attribute.Bool("sync.degraded", res.Degraded),
		attribute.Int("sync.total", len(res.All)),
		attribute.Int("sync.new", len(res.New)),
		attribute.Int("sync.updated", len(res.Updated)),
	)
	if res.Degraded {
		span.SetStatus(codes.Error, res.Error)
	}

	s.metrics.ObserveSync(res.Source, res.Degraded, res.Duration,
		len(res.New), len(res.Updated), res.Dropped, res.Stats.Total, len(patients))

	if s.journal != nil {
		s.journal.Record(&domain.SyncRun{
			OccurredAt: res.SyncedAt,
			Trigger:    trigger,
			Source:     res.Source,
			Degraded:   res.Degraded,
			Error:      res.Error,
			Total:      len(res.All),
			NewCount:   len(res.New),
			Updated:    len(res.Updated),
			Dropped:    res.Dropped,
			Patients:   len(patients),
			DurationMS: res.Duration.Milliseconds(),
		})
	}

	s.latestMu.Lock()
	s.latest = res
	s.latestMu.Unlock()

	return res
}

// The fallback file only ever holds data that came from a live source.
func (s *SyncService) shouldCache(res *SyncResult) bool {
	if s.opts.Cache == nil || res.Degraded {
		return false
	}
	return res.Source != source.NameFile && res.Source != source.NameMock
}

// Resync forgets the snapshot and runs a pass, so every record is reported
// again as new.
func (s *SyncService) Resync(ctx context.Context, trigger domain.SyncTrigger) *SyncResult {
	s.mu.Lock()
	s.snapshot.Reset()
	s.mu.Unlock()

	s.log.Info("snapshot reset", zap.String("trigger", string(trigger)))
	return s.Sync(ctx, trigger)
}

// Run syncs immediately and then every interval until ctx is done.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) error {
	s.Sync(ctx, domain.TriggerStartup)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sync(ctx, domain.TriggerSchedule)
		}
	}
}

// Latest returns the last pass result, or nil before the first pass.
func (s *SyncService) Latest() *SyncResult {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

// EnsureSynced returns the latest result, running a pass first if none has
// completed yet.
func (s *SyncService) EnsureSynced(ctx context.Context) *SyncResult {
	if res := s.Latest(); res != nil {
		return res
	}
	return s.Sync(ctx, domain.TriggerRequest)
}

// Status reads the counters from the latest pass so it never waits on a
// pass in progress.
func (s *SyncService) Status(ctx context.Context) SyncStatus {
	out := SyncStatus{
		Connected: s.Connected(ctx),
		Server:    s.opts.Server,
		Database:  s.opts.Database,
	}
	if res := s.Latest(); res != nil {
		out.TotalAppointments = res.Stats.Total
		out.NewAppointments = res.Stats.NewLooking
		out.UpdatedAppointments = res.Stats.Edited
		out.LastSync = res.SyncedAt
		out.LastSource = res.Source
		out.LastError = res.Error
	}
	return out
}

// Connected reports whether the clinic database answers, or, without one,
// whether the last pass reached a live source.
func (s *SyncService) Connected(ctx context.Context) bool {
	if s.opts.Writer != nil {
		return s.opts.Writer.Ping(ctx) == nil
	}
	res := s.Latest()
	return res != nil && !res.Degraded
}

// CachedCount is the number of appointments held in the snapshot.
func (s *SyncService) CachedCount() int {
	if res := s.Latest(); res != nil {
		return res.Stats.Total
	}
	return 0
}

// UpdateStatus writes a new status for an appointment back to the clinic
// database. The change shows up as an update on the next pass.
func (s *SyncService) UpdateStatus(ctx context.Context, id, status, requestedBy string) error {
	code, err := appointment.ParseStatusInput(status)
	if err != nil {
		s.metrics.ObserveStatusWrite("invalid")
		return err
	}
	if s.opts.Writer == nil {
		s.metrics.ObserveStatusWrite("unavailable")
		return appointment.ErrDatabaseUnavailable
	}

	err = s.opts.Writer.UpdateStatus(ctx, appointment.StatusChange{
		AppointmentID: id,
		Code:          code,
		RequestedBy:   requestedBy,
		RequestedAt:   time.Now(),
	})
	switch {
	case err == nil:
		s.metrics.ObserveStatusWrite("ok")
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		s.metrics.ObserveStatusWrite("not_found")
		return err
	default:
		s.metrics.ObserveStatusWrite("error")
		return fmt.Errorf("writing status for %s: %w", id, err)
	}

	s.log.Info("appointment status updated",
		zap.String("appointment_id", id),
		zap.String("status", status),
		zap.Int("code", int(code)),
		zap.String("by", requestedBy),
	)
	return nil
}
