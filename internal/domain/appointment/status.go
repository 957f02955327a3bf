package appointment

import (
	"strconv"
	"strings"
)

// SourceCode is the practice-management database's IdSitC situation code.
type SourceCode int

const (
	CodePlanned   SourceCode = 0
	CodeVoided    SourceCode = 1
	CodeFinished  SourceCode = 5
	CodeConfirmed SourceCode = 7
	CodeCancelled SourceCode = 8
)

var sourceLabels = map[SourceCode]string{
	CodePlanned:   "Planificada",
	CodeVoided:    "Anulada",
	CodeFinished:  "Finalizada",
	CodeConfirmed: "Confirmada",
	CodeCancelled: "Cancelada",
}

// Label returns the Spanish label the clinic software shows for the code.
func (c SourceCode) Label() string {
	if l, ok := sourceLabels[c]; ok {
		return l
	}
	return "Desconocido"
}

func (c SourceCode) IsValid() bool {
	_, ok := sourceLabels[c]
	return ok
}

// ParseSourceCode reads a numeric IdSitC value as found in SQL rows.
func ParseSourceCode(raw string) (SourceCode, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	c := SourceCode(n)
	return c, c.IsValid()
}

// ParseStatusInput maps the API's status vocabulary to the code written back
// to the database. "no-show" is stored as Anulada, matching the clinic
// software which has no dedicated no-show situation.
func ParseStatusInput(s string) (SourceCode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scheduled":
		return CodePlanned, nil
	case "confirmed":
		return CodeConfirmed, nil
	case "completed":
		return CodeFinished, nil
	case "cancelled":
		return CodeCancelled, nil
	case "no-show", "no_show":
		return CodeVoided, nil
	}
	return 0, ErrInvalidStatus
}
