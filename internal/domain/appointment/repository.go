package appointment

import "context"

// StatusWriter writes a status change back to the clinic database.
type StatusWriter interface {
	// UpdateStatus returns ErrAppointmentNotFound when no row has the id.
	UpdateStatus(ctx context.Context, change StatusChange) error
	Ping(ctx context.Context) error
}
