package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/normalize"
)

// AppointmentService answers read queries over the latest synced set.
type AppointmentService struct {
	sync *SyncService
	log  *zap.Logger
}

func NewAppointmentService(sync *SyncService, log *zap.Logger) *AppointmentService {
	return &AppointmentService{sync: sync, log: log}
}

// Current returns the latest pass, forcing a new one when refresh is set.
func (s *AppointmentService) Current(ctx context.Context, refresh bool) *SyncResult {
	if refresh {
		return s.sync.Sync(ctx, domain.TriggerRequest)
	}
	return s.sync.EnsureSynced(ctx)
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	res := s.sync.EnsureSynced(ctx)
	for i := range res.All {
		if res.All[i].ID == id {
			a := res.All[i]
			return &a, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (s *AppointmentService) ListAppointments(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	if q.Status != nil && !q.Status.IsValid() {
		return nil, appointment.ErrInvalidStatus
	}
	if err := validateDateRange(q); err != nil {
		return nil, err
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	res := s.sync.EnsureSynced(ctx)
	var matched []appointment.Appointment
	for _, a := range res.All {
		if matchesAppointment(&a, q) {
			matched = append(matched, a)
		}
	}

	lo, hi, pages := pageBounds(len(matched), q.Page, q.PageSize)
	return &appointment.PagedAppointments{
		Appointments: matched[lo:hi],
		TotalCount:   int64(len(matched)),
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   pages,
	}, nil
}

// Bounds must already be canonical; range checks compare strings.
func validateDateRange(q *appointment.ListAppointmentsQuery) error {
	var fields []string
	if _, ok := normalize.DateValue(q.DateFrom); q.DateFrom != "" && !ok {
		fields = append(fields, "from: must be YYYY-MM-DD")
	}
	if _, ok := normalize.DateValue(q.DateTo); q.DateTo != "" && !ok {
		fields = append(fields, "to: must be YYYY-MM-DD")
	}
	if len(fields) == 0 && q.DateFrom != "" && q.DateTo != "" && q.DateFrom > q.DateTo {
		fields = append(fields, "from: must not be after to")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func matchesAppointment(a *appointment.Appointment, q *appointment.ListAppointmentsQuery) bool {
	if q.PatientID != "" && a.PatientID != q.PatientID {
		return false
	}
	if q.Dentist != "" && !strings.EqualFold(a.Dentist, q.Dentist) {
		return false
	}
	if q.Status != nil && a.Status != *q.Status {
		return false
	}
	if q.DateFrom != "" && a.Date < q.DateFrom {
		return false
	}
	if q.DateTo != "" && a.Date > q.DateTo {
		return false
	}
	return true
}

func pageBounds(total, page, size int) (lo, hi, pages int) {
	pages = (total + size - 1) / size
	lo = min((page-1)*size, total)
	hi = min(lo+size, total)
	return lo, hi, pages
}
