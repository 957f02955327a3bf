package roster

import (
	"strings"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/patient"
)

func appt(id, patientID, date string, status appointment.Status) appointment.Appointment {
	return appointment.Appointment{
		ID:          id,
		PatientID:   patientID,
		PatientName: "Paciente " + patientID,
		Date:        date,
		Time:        "09:00",
		Status:      status,
	}
}

func TestAggregateLastVisitIsMax(t *testing.T) {
	patients := Aggregate([]appointment.Appointment{
		appt("1", "P1", "2025-01-10", appointment.StatusCompleted),
		appt("2", "P1", "2025-01-05", appointment.StatusCompleted),
	})

	if len(patients) != 1 {
		t.Fatalf("expected 1 patient, got %d", len(patients))
	}
	if patients[0].LastVisit != "2025-01-10" {
		t.Fatalf("expected lastVisit 2025-01-10, got %q", patients[0].LastVisit)
	}
	if len(patients[0].Appointments) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(patients[0].Appointments))
	}
}

func TestAggregateNextAppointmentIsMin(t *testing.T) {
	patients := Aggregate([]appointment.Appointment{
		appt("1", "P1", "2025-03-01", appointment.StatusScheduled),
		appt("2", "P1", "2025-02-01", appointment.StatusScheduled),
		appt("3", "P1", "2025-01-01", appointment.StatusCancelled),
		appt("4", "P1", "2025-04-01", appointment.StatusScheduled),
	})

	p := patients[0]
	if p.NextAppointment != "2025-02-01" {
		t.Fatalf("expected nextAppointment 2025-02-01, got %q", p.NextAppointment)
	}
	if p.LastVisit != "" {
		t.Fatalf("expected no lastVisit, got %q", p.LastVisit)
	}
}

func TestAggregateFirstOccurrenceOrder(t *testing.T) {
	patients := Aggregate([]appointment.Appointment{
		appt("1", "P3", "2025-01-01", appointment.StatusScheduled),
		appt("2", "P1", "2025-01-01", appointment.StatusScheduled),
		appt("3", "P3", "2025-01-02", appointment.StatusScheduled),
		appt("4", "P2", "2025-01-01", appointment.StatusScheduled),
	})

	want := []string{"P3", "P1", "P2"}
	if len(patients) != len(want) {
		t.Fatalf("expected %d patients, got %d", len(want), len(patients))
	}
	for i, p := range patients {
		if p.ID != want[i] {
			t.Fatalf("expected order %v, got patient %q at %d", want, p.ID, i)
		}
	}
}

func TestAggregatePhone(t *testing.T) {
	first := appt("1", "P1", "2025-01-01", appointment.StatusScheduled)
	second := appt("2", "P1", "2025-01-02", appointment.StatusScheduled)
	second.Phone = "+34 666 123 456"
	lonely := appt("3", "P2", "2025-01-01", appointment.StatusScheduled)

	patients := Aggregate([]appointment.Appointment{first, second, lonely})
	if patients[0].Phone != "+34666123456" {
		t.Fatalf("expected phone from a later appointment, got %q", patients[0].Phone)
	}
	if patients[1].Phone != patient.UnknownPhone {
		t.Fatalf("expected placeholder phone, got %q", patients[1].Phone)
	}
}

func TestAggregateSkipsInvalidIDs(t *testing.T) {
	patients := Aggregate([]appointment.Appointment{
		appt("1", "", "2025-01-01", appointment.StatusScheduled),
		appt("", "P1", "2025-01-01", appointment.StatusScheduled),
		appt("2", strings.Repeat("x", 101), "2025-01-01", appointment.StatusScheduled),
		appt("3", "P2", "2025-01-01", appointment.StatusScheduled),
	})

	if len(patients) != 1 || patients[0].ID != "P2" {
		t.Fatalf("expected only P2, got %d patients", len(patients))
	}
}

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); len(got) != 0 {
		t.Fatalf("expected no patients, got %d", len(got))
	}
}
