package appointment

import "time"

// DefaultTreatment is used when the source row carries no treatment label.
const DefaultTreatment = "Consulta general"

// Status is the canonical appointment state. Source labels ("Planificada",
// "Finalizada", SQL IdSitC codes, ...) are folded into these by the
// normalize package.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
	StatusUnknown   Status = "unknown"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow, StatusUnknown:
		return true
	}
	return false
}

// Color returns the presentation token for the status.
func (s Status) Color() string {
	switch s {
	case StatusScheduled:
		return "#3B82F6"
	case StatusCompleted:
		return "#10B981"
	case StatusCancelled:
		return "#EF4444"
	case StatusNoShow:
		return "#F59E0B"
	}
	return "#6B7280"
}

// Appointment is the canonical record every source is converted into.
//
// Date is always YYYY-MM-DD and Time is always HH:MM. The roster relies on
// that to order dates as plain strings.
type Appointment struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId"`
	PatientName string `json:"patientName"`
	GivenName   string `json:"givenName"`
	FamilyName  string `json:"familyName"`

	Date      string `json:"date"`
	Time      string `json:"time"`
	Treatment string `json:"treatment"`

	Status       Status `json:"status"`
	StatusColor  string `json:"statusColor"`
	SourceStatus string `json:"sourceStatus"`

	// Raw FechaAlta / CitMod stamps. Compared as strings only.
	CreatedAt      string `json:"createdAt"`
	LastModifiedAt string `json:"lastModifiedAt"`

	Notes   string `json:"notes,omitempty"`
	Dentist string `json:"dentist,omitempty"`
	Phone   string `json:"phone,omitempty"`

	DurationMins *int   `json:"durationMins,omitempty"`
	StartsAt     string `json:"startsAt,omitempty"`
	EndsAt       string `json:"endsAt,omitempty"`
}

// LooksNew reports whether the source stamps say the record was never edited.
func (a *Appointment) LooksNew() bool {
	return a.CreatedAt == a.LastModifiedAt
}

// DiffersFrom reports whether any of the fields a clinic edit can touch
// changed between prev and a. The raw source status is compared so that
// relabels which fold into the same canonical status still count.
func (a *Appointment) DiffersFrom(prev *Appointment) bool {
	return a.Date != prev.Date ||
		a.Time != prev.Time ||
		a.SourceStatus != prev.SourceStatus ||
		a.Treatment != prev.Treatment ||
		a.Dentist != prev.Dentist ||
		a.Notes != prev.Notes ||
		a.Phone != prev.Phone
}

// ListAppointmentsQuery filters the cached appointment set. Date bounds are
// canonical YYYY-MM-DD strings and inclusive.
type ListAppointmentsQuery struct {
	PatientID string
	Dentist   string
	Status    *Status
	DateFrom  string
	DateTo    string
	Page      int
	PageSize  int
}

type PagedAppointments struct {
	Appointments []Appointment `json:"appointments"`
	TotalCount   int64         `json:"total_count"`
	Page         int           `json:"page"`
	PageSize     int           `json:"page_size"`
	TotalPages   int           `json:"total_pages"`
}

// StatusChange is a requested write-back of a status to the source database.
type StatusChange struct {
	AppointmentID string
	Code          SourceCode
	RequestedBy   string
	RequestedAt   time.Time
}
