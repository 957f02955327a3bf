package appointment

import "errors"

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidStatus       = errors.New("invalid status: must be one of scheduled, confirmed, completed, cancelled, no-show")
	ErrDatabaseUnavailable = errors.New("clinic database is not connected")
)
