package source

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/normalize"
)

// rowNamespace seeds ids for sheet rows that carry none, so the same row
// gets the same id on every sync.
var rowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://docs.google.com/spreadsheets/appointments"))

var (
	errMissingField = errors.New("row is missing date, time or patient name")
	errBadDate      = errors.New("unparseable date")
	errBadTime      = errors.New("unparseable time")

	whitespace = regexp.MustCompile(`\s+`)
)

// Conversion is the canonical form of a batch. Dropped counts rows that
// could not be converted.
type Conversion struct {
	Appointments []appointment.Appointment
	Dropped      int
}

// Adapter converts raw batches into canonical appointments.
type Adapter struct {
	logger *zap.Logger
}

func NewAdapter(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// Convert maps every row of batch with the field mapping for its format.
// Rows lacking a date, time or patient name are skipped; rows whose date or
// time cannot be parsed are skipped and logged. Neither fails the batch.
func (a *Adapter) Convert(batch *Batch) Conversion {
	convert := fromSheetRow
	if batch.Format == FormatSQL {
		convert = fromSQLRow
	}

	out := Conversion{Appointments: make([]appointment.Appointment, 0, len(batch.Rows))}
	for i, r := range batch.Rows {
		appt, err := convert(r)
		if err != nil {
			out.Dropped++
			if errors.Is(err, errMissingField) {
				a.logger.Debug("skipping incomplete row", zap.String("source", batch.Source), zap.Int("row", i))
			} else {
				a.logger.Warn("dropping unparseable row",
					zap.String("source", batch.Source),
					zap.Int("row", i),
					zap.String("fecha", r["Fecha"]),
					zap.String("hora", r["Hora"]),
					zap.Error(err),
				)
			}
			continue
		}
		out.Appointments = append(out.Appointments, appt)
	}
	return out
}

// fromSheetRow maps a row of the appointment spreadsheet.
func fromSheetRow(r Row) (appointment.Appointment, error) {
	rawDate, rawTime, given := r.Get("Fecha"), r.Get("Hora"), r.Get("Nombre")
	if rawDate == "" || rawTime == "" || given == "" {
		return appointment.Appointment{}, errMissingField
	}

	appt, err := withSchedule(rawDate, rawTime, normalize.Time)
	if err != nil {
		return appt, err
	}

	fillCommon(&appt, r, given, r.Get("Apellidos"))

	appt.SourceStatus = r.Get("EstadoCita", "Situacion")
	appt.Status = normalize.Status(appt.SourceStatus)

	appt.ID = rowID(r, &appt)

	if d, err := strconv.Atoi(r.Get("Duracion")); err == nil && d > 0 {
		appt.DurationMins = &d
	}
	appt.StartsAt = r.Get("FechaHoraIni")
	appt.EndsAt = r.Get("FechaHoraFin")

	appt.StatusColor = appt.Status.Color()
	return appt, nil
}

// fromSQLRow maps a row exported from the clinic database. Rows may carry
// IdSitC codes instead of status labels, hours as seconds since midnight and
// the patient as a single "Apellidos, Nombre" Texto field.
func fromSQLRow(r Row) (appointment.Appointment, error) {
	given, family := r.Get("Nombre"), r.Get("Apellidos")
	if given == "" {
		family, given = splitTexto(r.Get("Texto"))
	}

	rawDate, rawTime := r.Get("Fecha"), r.Get("Hora")
	if rawDate == "" || rawTime == "" || given == "" {
		return appointment.Appointment{}, errMissingField
	}

	appt, err := withSchedule(rawDate, rawTime, sqlTime)
	if err != nil {
		return appt, err
	}

	fillCommon(&appt, r, given, family)

	rawStatus := r.Get("EstadoCita", "IdSitC", "Situacion")
	appt.Status = normalize.SQLStatus(rawStatus)
	appt.SourceStatus = rawStatus
	if code, ok := appointment.ParseSourceCode(rawStatus); ok {
		appt.SourceStatus = code.Label()
	}

	appt.ID = rowID(r, &appt)

	appt.StatusColor = appt.Status.Color()
	return appt, nil
}

func withSchedule(rawDate, rawTime string, parseTime func(string) (string, bool)) (appointment.Appointment, error) {
	date, ok := normalize.Date(rawDate)
	if !ok {
		return appointment.Appointment{}, errBadDate
	}
	clock, ok := parseTime(rawTime)
	if !ok {
		return appointment.Appointment{}, errBadTime
	}
	return appointment.Appointment{Date: date, Time: clock}, nil
}

func fillCommon(appt *appointment.Appointment, r Row, given, family string) {
	appt.GivenName = given
	appt.FamilyName = family
	appt.PatientName = strings.TrimSpace(given + " " + family)

	appt.PatientID = r.Get("NumPac")
	if appt.PatientID == "" {
		appt.PatientID = patientSlug(appt.PatientName)
	}

	appt.Treatment = r.Get("Tratamiento")
	if appt.Treatment == "" {
		appt.Treatment = appointment.DefaultTreatment
	}

	appt.CreatedAt = r.Get("FechaAlta")
	appt.LastModifiedAt = r.Get("CitMod")
	appt.Notes = r.Get("Notas")
	appt.Dentist = r.Get("Odontologo")
	appt.Phone = r.Get("TelMovil")
}

func rowID(r Row, appt *appointment.Appointment) string {
	if id := r.Get("Registro", "IdCita"); id != "" {
		return id
	}
	return uuid.NewSHA1(rowNamespace, []byte(appt.Date+"|"+appt.Time+"|"+appt.PatientName)).String()
}

// sqlTime accepts the database's seconds since midnight and clock times. A
// bare integer is always seconds, so 10 is 00:00 and not ten o'clock.
func sqlTime(raw string) (string, bool) {
	if secs, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return normalize.ClockFromSeconds(secs)
	}
	return normalize.Time(raw)
}

func patientSlug(name string) string {
	return "patient_" + whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

// splitTexto splits "Apellidos, Nombre".
func splitTexto(texto string) (family, given string) {
	family, given, found := strings.Cut(texto, ",")
	if !found {
		return "", strings.TrimSpace(texto)
	}
	return strings.TrimSpace(family), strings.TrimSpace(given)
}
