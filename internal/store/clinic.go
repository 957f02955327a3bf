// Package store holds the gorm repositories backed by the clinic's Postgres
// mirror of the practice-management database.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/normalize"
)

// stampLayout is how the clinic software renders FecAlta and HorSitCita.
const stampLayout = "2006-01-02 15:04:05"

// serialEpoch is day 2 of the clinic software's day-number calendar, so
// Fecha N is serialEpoch plus N-2 days.
var serialEpoch = time.Date(1900, time.January, 1, 12, 0, 0, 0, time.UTC)

var treatments = map[int]string{
	1:  "Revision",
	2:  "Urgencia",
	9:  "Periodoncia",
	10: "Cirugia Implantes",
	11: "Ortodoncia",
	13: "Primera",
	14: "Higiene dental",
}

var dentists = map[int]string{
	3:  "Dr. Mario Rubio",
	4:  "Dra. Irene Garcia",
	8:  "Dra. Virginia Tresgallo",
	10: "Dra. Miriam Carrasco",
	12: "Dr. Juan Antonio Manzanedo",
}

// ClinicAppointment mirrors a DCitas row of the practice-management
// database. Fecha is a day number and Hora seconds since midnight.
type ClinicAppointment struct {
	IDCita     string    `gorm:"column:id_cita;type:varchar(40);primaryKey"`
	HorSitCita time.Time `gorm:"column:hor_sit_cita;not null;index"`
	FecAlta    time.Time `gorm:"column:fec_alta;not null"`

	NumPac string `gorm:"column:num_pac;type:varchar(20);index"`
	Texto  string `gorm:"column:texto;type:varchar(200);not null"`
	Movil  string `gorm:"column:movil;type:varchar(30)"`

	Fecha   int `gorm:"column:fecha;not null;index"`
	Hora    int `gorm:"column:hora;not null"`
	IDSitC  int `gorm:"column:id_sit_c;not null;default:0"`
	IDIcono int `gorm:"column:id_icono"`
	IDUsu   int `gorm:"column:id_usu;index"`

	Notas string `gorm:"column:notas;type:text"`
}

func (ClinicAppointment) TableName() string {
	return "clinic.citas"
}

// Row flattens the record into the export column names the source adapter
// reads.
func (c *ClinicAppointment) Row() map[string]string {
	family, given := "", strings.TrimSpace(c.Texto)
	if before, after, found := strings.Cut(c.Texto, ","); found {
		family, given = strings.TrimSpace(before), strings.TrimSpace(after)
	}

	hora, _ := normalize.ClockFromSeconds(c.Hora)

	treatment, ok := treatments[c.IDIcono]
	if !ok {
		treatment = "Otros"
	}
	dentist, ok := dentists[c.IDUsu]
	if !ok {
		dentist = "Odontologo"
	}

	return map[string]string{
		"Registro":    c.IDCita,
		"CitMod":      c.HorSitCita.Format(stampLayout),
		"FechaAlta":   c.FecAlta.Format(stampLayout),
		"NumPac":      c.NumPac,
		"Apellidos":   family,
		"Nombre":      given,
		"TelMovil":    c.Movil,
		"Fecha":       SerialDate(c.Fecha),
		"Hora":        hora,
		"EstadoCita":  appointment.SourceCode(c.IDSitC).Label(),
		"Tratamiento": treatment,
		"Odontologo":  dentist,
		"Notas":       c.Notas,
	}
}

// SerialDate converts a day number to YYYY-MM-DD.
func SerialDate(days int) string {
	return serialEpoch.AddDate(0, 0, days-2).Format(time.DateOnly)
}

// ClinicRepository reads and writes appointments in the clinic database.
type ClinicRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewClinicRepository(db *gorm.DB) *ClinicRepository {
	return &ClinicRepository{db: db, now: time.Now}
}

// RecentRows returns up to limit appointments modified since the given time,
// most recent first.
func (r *ClinicRepository) RecentRows(ctx context.Context, since time.Time, limit int) ([]map[string]string, error) {
	var recs []ClinicAppointment
	err := r.db.WithContext(ctx).
		Where("hor_sit_cita >= ?", since).
		Order("hor_sit_cita DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying citas: %w", err)
	}

	rows := make([]map[string]string, len(recs))
	for i := range recs {
		rows[i] = recs[i].Row()
	}
	return rows, nil
}

// UpdateStatus sets the situation code and stamps the modification time, so
// the next sync reports the appointment as updated.
func (r *ClinicRepository) UpdateStatus(ctx context.Context, change appointment.StatusChange) error {
	if !change.Code.IsValid() {
		return appointment.ErrInvalidStatus
	}

	stamp := change.RequestedAt
	if stamp.IsZero() {
		stamp = r.now()
	}

	res := r.db.WithContext(ctx).
		Model(&ClinicAppointment{}).
		Where("id_cita = ?", change.AppointmentID).
		Updates(map[string]any{
			"id_sit_c":     int(change.Code),
			"hor_sit_cita": stamp,
		})
	if res.Error != nil {
		return fmt.Errorf("updating cita %s: %w", change.AppointmentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *ClinicRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Join(appointment.ErrDatabaseUnavailable, err)
	}
	return nil
}
