package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/service"
)

type AppointmentHandler struct {
	appts *service.AppointmentService
	sync  *service.SyncService
	log   *zap.Logger
}

func NewAppointmentHandler(appts *service.AppointmentService, sync *service.SyncService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{appts: appts, sync: sync, log: log}
}

type syncMetadata struct {
	Total        int       `json:"total"`
	NewCount     int       `json:"new_count"`
	UpdatedCount int       `json:"updated_count"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	Degraded     bool      `json:"degraded"`
	Error        string    `json:"error,omitempty"`
}

type appointmentsResponse struct {
	Appointments        []appointment.Appointment `json:"appointments"`
	Patients            []*patient.Patient        `json:"patients"`
	Metadata            syncMetadata              `json:"metadata"`
	NewAppointments     []appointment.Appointment `json:"new_appointments"`
	UpdatedAppointments []appointment.Appointment `json:"updated_appointments"`
}

func newAppointmentsResponse(res *service.SyncResult) appointmentsResponse {
	return appointmentsResponse{
		Appointments: orEmpty(res.All),
		Patients:     orEmpty(res.Patients),
		Metadata: syncMetadata{
			Total:        len(res.All),
			NewCount:     len(res.New),
			UpdatedCount: len(res.Updated),
			Timestamp:    res.SyncedAt,
			Source:       res.Source,
			Degraded:     res.Degraded,
			Error:        res.Error,
		},
		NewAppointments:     orEmpty(res.New),
		UpdatedAppointments: orEmpty(res.Updated),
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// GET /api/appointments?refresh=true
func (h *AppointmentHandler) List(c *gin.Context) {
	refresh := c.Query("refresh") == "true"
	res := h.appts.Current(c.Request.Context(), refresh)
	c.JSON(http.StatusOK, newAppointmentsResponse(res))
}

// GET /api/appointments/search
func (h *AppointmentHandler) Search(c *gin.Context) {
	q := &appointment.ListAppointmentsQuery{
		PatientID: c.Query("patient_id"),
		Dentist:   c.Query("dentist"),
		DateFrom:  c.Query("from"),
		DateTo:    c.Query("to"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		st := appointment.Status(raw)
		q.Status = &st
	}

	page, err := h.appts.ListAppointments(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	page.Appointments = orEmpty(page.Appointments)
	respondOK(c, page)
}

// GET /api/appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	a, err := h.appts.GetAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type updateStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PUT /api/appointments/:id/status
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	by := ""
	if claims := claimsFrom(c); claims != nil {
		by = claims.Username
	}

	if err := h.sync.UpdateStatus(c.Request.Context(), id, req.Status, by); err != nil {
		h.log.Warn("status update failed", zap.String("appointment_id", id), zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, updateStatusResponse{
		Success: true,
		Message: "Appointment " + id + " status updated to " + req.Status,
	})
}

type PatientHandler struct {
	patients *service.PatientService
}

func NewPatientHandler(patients *service.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

// GET /api/patients
func (h *PatientHandler) List(c *gin.Context) {
	page, err := h.patients.ListPatients(c.Request.Context(), &patient.ListPatientsQuery{
		Search:   c.Query("search"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 100),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	page.Patients = orEmpty(page.Patients)
	respondOK(c, page)
}

// GET /api/patients/:id
func (h *PatientHandler) Get(c *gin.Context) {
	p, err := h.patients.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}
