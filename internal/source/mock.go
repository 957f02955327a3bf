package source

import "context"

// Mock serves the fixed demo dataset. It never fails and ends every chain.
type Mock struct{}

func (Mock) Name() string { return NameMock }

func (Mock) Fetch(context.Context) (*Batch, error) {
	return MockBatch(), nil
}

// MockBatch returns a fresh copy of the demo dataset: five clinic database
// rows, two of which were edited after creation.
func MockBatch() *Batch {
	rows := []Row{
		{
			"Registro": "1001", "CitMod": "2025-01-11 10:30:00", "FechaAlta": "2025-01-11 10:30:00",
			"NumPac": "P001", "Apellidos": "García López", "Nombre": "María", "TelMovil": "+34 666 123 456",
			"Fecha": "2025-01-15", "Hora": "09:00", "EstadoCita": "Planificada", "Tratamiento": "Revision",
			"Odontologo": "Dr. Mario Rubio", "Notas": "Primera visita del año - Revisión general",
		},
		{
			"Registro": "1002", "CitMod": "2025-01-11 11:00:00", "FechaAlta": "2025-01-10 15:30:00",
			"NumPac": "P002", "Apellidos": "Ruiz Martín", "Nombre": "Carlos", "TelMovil": "+34 677 234 567",
			"Fecha": "2025-01-16", "Hora": "10:30", "EstadoCita": "Confirmada", "Tratamiento": "Ortodoncia",
			"Odontologo": "Dra. Irene Garcia", "Notas": "Ajuste de brackets - Control mensual",
		},
		{
			"Registro": "1003", "CitMod": "2025-01-11 12:00:00", "FechaAlta": "2025-01-11 12:00:00",
			"NumPac": "P003", "Apellidos": "Martín Sánchez", "Nombre": "Ana", "TelMovil": "+34 688 345 678",
			"Fecha": "2025-01-17", "Hora": "11:00", "EstadoCita": "Planificada", "Tratamiento": "Higiene dental",
			"Odontologo": "Dra. Virginia Tresgallo", "Notas": "Limpieza y revisión - Cita semestral",
		},
		{
			"Registro": "1004", "CitMod": "2025-01-11 14:00:00", "FechaAlta": "2025-01-11 14:00:00",
			"NumPac": "P004", "Apellidos": "López Fernández", "Nombre": "Juan", "TelMovil": "+34 699 456 789",
			"Fecha": "2025-01-18", "Hora": "16:00", "EstadoCita": "Planificada", "Tratamiento": "Cirugia Implantes",
			"Odontologo": "Dr. Juan Antonio Manzanedo", "Notas": "Colocación de implante molar inferior",
		},
		{
			"Registro": "1005", "CitMod": "2025-01-11 15:30:00", "FechaAlta": "2025-01-09 09:15:00",
			"NumPac": "P005", "Apellidos": "Rodríguez Pérez", "Nombre": "Elena", "TelMovil": "+34 611 789 123",
			"Fecha": "2025-01-19", "Hora": "12:30", "EstadoCita": "Confirmada", "Tratamiento": "Periodoncia",
			"Odontologo": "Dra. Miriam Carrasco", "Notas": "Tratamiento periodontal - Segunda sesión",
		},
	}
	return &Batch{Source: NameMock, Format: FormatSQL, Rows: rows}
}
