package patient

import "github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"

// UnknownPhone is shown when none of a patient's appointments carries a phone.
const UnknownPhone = "+34 000 000 000"

// Patient is derived from the appointment set on every sync and never stored.
type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`

	// Canonical YYYY-MM-DD dates, empty when there is none.
	LastVisit       string `json:"lastVisit,omitempty"`
	NextAppointment string `json:"nextAppointment,omitempty"`

	Appointments []appointment.Appointment `json:"appointments"`
}

// ListPatientsQuery defines filtering and pagination over the derived roster.
type ListPatientsQuery struct {
	Search   string // Case-insensitive match on name
	Page     int
	PageSize int
}

type PagedPatients struct {
	Patients   []*Patient `json:"patients"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
