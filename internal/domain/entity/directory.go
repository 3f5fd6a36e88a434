package entity

// Entidades del directorio externo (solo lectura para el motor).

// Department categoría de cola de trabajo; su cola vive en PipelineID.
type Department struct {
	ID         string
	Name       string
	PipelineID string
}

// Pipeline flujo de etapas de un departamento.
type Pipeline struct {
	ID   string
	Name string
}

// Stage etapa de un pipeline, ordenada por Position.
type Stage struct {
	ID         string
	PipelineID string
	Name       string
	Position   int
}

// Instrument instrumento del catálogo. PipelineRef puede guardar el id del pipeline
// o su nombre en texto libre (datos heredados).
type Instrument struct {
	ID           string
	Name         string
	DepartmentID string
	PipelineRef  string
}

// Technician técnico asignable.
type Technician struct {
	ID           string
	Name         string
	DepartmentID string
}
