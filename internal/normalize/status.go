package normalize

import (
	"strings"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
)

// Status folds a free-text Spanish status label into the canonical enum.
// Matching is a case-insensitive substring test; anything unrecognised is
// StatusUnknown.
func Status(raw string) appointment.Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return appointment.StatusUnknown
	case strings.Contains(s, "planificad"), strings.Contains(s, "programad"):
		return appointment.StatusScheduled
	case strings.Contains(s, "finalizad"), strings.Contains(s, "completad"):
		return appointment.StatusCompleted
	case strings.Contains(s, "cancelad"), strings.Contains(s, "anulad"):
		return appointment.StatusCancelled
	case strings.Contains(s, "no") && strings.Contains(s, "asisti"):
		return appointment.StatusNoShow
	}
	return appointment.StatusUnknown
}

// SQLStatus is Status for rows read from the clinic database, which may carry
// the numeric IdSitC code instead of its label. A confirmed appointment is
// still a scheduled one.
func SQLStatus(raw string) appointment.Status {
	if code, ok := appointment.ParseSourceCode(raw); ok {
		return statusForCode(code)
	}
	if strings.Contains(strings.ToLower(raw), "confirmad") {
		return appointment.StatusScheduled
	}
	return Status(raw)
}

func statusForCode(code appointment.SourceCode) appointment.Status {
	switch code {
	case appointment.CodePlanned, appointment.CodeConfirmed:
		return appointment.StatusScheduled
	case appointment.CodeFinished:
		return appointment.StatusCompleted
	case appointment.CodeVoided, appointment.CodeCancelled:
		return appointment.StatusCancelled
	}
	return appointment.StatusUnknown
}
