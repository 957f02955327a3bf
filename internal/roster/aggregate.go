// Package roster derives the patient list from the appointment set.
package roster

import (
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/phone"
)

// maxIDLength bounds ids accepted from sources; longer values are garbage
// from a mis-zipped row.
const maxIDLength = 100

// Aggregate folds appointments into patients in a single pass. Patients come
// out in order of their first appointment.
//
// LastVisit is the latest completed date and NextAppointment the earliest
// scheduled one. Dates are compared as strings, which is only correct
// because they are canonical YYYY-MM-DD.
func Aggregate(appts []appointment.Appointment) []*patient.Patient {
	byID := make(map[string]*patient.Patient)
	var out []*patient.Patient

	for _, a := range appts {
		if !validID(a.ID) || !validID(a.PatientID) {
			continue
		}

		p, ok := byID[a.PatientID]
		if !ok {
			p = &patient.Patient{
				ID:   a.PatientID,
				Name: a.PatientName,
			}
			byID[a.PatientID] = p
			out = append(out, p)
		}
		if p.Phone == "" && a.Phone != "" {
			p.Phone = phone.NormalizeE164(a.Phone)
		}

		p.Appointments = append(p.Appointments, a)

		switch a.Status {
		case appointment.StatusCompleted:
			if p.LastVisit == "" || a.Date > p.LastVisit {
				p.LastVisit = a.Date
			}
		case appointment.StatusScheduled:
			if p.NextAppointment == "" || a.Date < p.NextAppointment {
				p.NextAppointment = a.Date
			}
		}
	}

	for _, p := range out {
		if p.Phone == "" {
			p.Phone = patient.UnknownPhone
		}
	}

	return out
}

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLength
}
