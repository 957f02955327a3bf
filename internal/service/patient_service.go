package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/patient"
)

// PatientService serves the roster derived by the latest sync pass.
type PatientService struct {
	sync *SyncService
	log  *zap.Logger
}

func NewPatientService(sync *SyncService, log *zap.Logger) *PatientService {
	return &PatientService{sync: sync, log: log}
}

func (s *PatientService) GetPatient(ctx context.Context, id string) (*patient.Patient, error) {
	for _, p := range s.sync.EnsureSynced(ctx).Patients {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (s *PatientService) ListPatients(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	var matched []*patient.Patient
	for _, p := range s.sync.EnsureSynced(ctx).Patients {
		if search == "" || strings.Contains(strings.ToLower(p.Name), search) {
			matched = append(matched, p)
		}
	}

	lo, hi, pages := pageBounds(len(matched), q.Page, q.PageSize)
	return &patient.PagedPatients{
		Patients:   matched[lo:hi],
		TotalCount: int64(len(matched)),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pages,
	}, nil
}
