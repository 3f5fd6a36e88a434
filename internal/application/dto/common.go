package dto

// ErrorResponse cuerpo de error HTTP.
// SubjectID identifica el ítem o la bandeja que provocó el fallo cuando aplica.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	SubjectID string `json:"subject_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// PartialSplitDetails detalle de una división de bandeja que no se completó.
type PartialSplitDetails struct {
	Succeeded  []string `json:"succeeded"`
	Failed     []string `json:"failed"`
	RolledBack bool     `json:"rolled_back"`
}

// ConflictDetails cantidades involucradas en un conflicto de concurrencia.
type ConflictDetails struct {
	Expected int `json:"expected"`
	Actual   int `json:"actual"`
}
