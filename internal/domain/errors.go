package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
// Las clases se comparan con errors.Is; los tipos concretos con errors.As.
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrValidation   = errors.New("validación fallida")
	ErrInvalidInput = ErrValidation
	ErrConflict     = errors.New("conflicto con el estado actual")
	ErrPersistence  = errors.New("error de persistencia")
	ErrForbidden    = errors.New("acceso denegado")
	ErrDuplicate    = errors.New("recurso duplicado")
)

// ValidationKind identifica la precondición que falló.
type ValidationKind string

const (
	KindTargetEqualsSource     ValidationKind = "TargetEqualsSource"
	KindOverAllocation         ValidationKind = "OverAllocation"
	KindInvalidQuantity        ValidationKind = "InvalidQuantity"
	KindNotSplittable          ValidationKind = "NotSplittable"
	KindEmptyTray              ValidationKind = "EmptyTray"
	KindIdentityMismatch       ValidationKind = "IdentityMismatch"
	KindInvalidAssignments     ValidationKind = "InvalidAssignments"
	KindConservationViolation  ValidationKind = "ConservationViolation"
	KindNoDepartmentResolvable ValidationKind = "NoDepartmentResolvable"
	KindMixedDepartment        ValidationKind = "MixedDepartment"
)

// ValidationError precondición fallida. Bloquea toda la operación; no hubo escritura parcial.
type ValidationError struct {
	Kind      ValidationKind
	SubjectID string
	Message   string
}

// NewValidationError construye un ValidationError con mensaje formateado.
func NewValidationError(kind ValidationKind, subjectID, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, SubjectID: subjectID, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.SubjectID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.SubjectID, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsValidationKind indica si err es (o envuelve) un ValidationError del tipo indicado.
func IsValidationKind(err error, kind ValidationKind) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind == kind
	}
	var me *MixedDepartmentError
	if errors.As(err, &me) {
		return kind == KindMixedDepartment
	}
	return false
}

// DepartmentConflict un departamento encontrado en una bandeja y los instrumentos que lo aportan.
type DepartmentConflict struct {
	DepartmentID   string   `json:"department_id"`
	DepartmentName string   `json:"department_name"`
	InstrumentIDs  []string `json:"instrument_ids"`
}

// MixedDepartmentError la bandeja contiene instrumentos de 2 o más departamentos.
// No se puede enrutar hasta dividirla en bandejas homogéneas.
type MixedDepartmentError struct {
	TrayID    string
	Conflicts []DepartmentConflict
}

func (e *MixedDepartmentError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (instrumentos: %s)", c.DepartmentName, strings.Join(c.InstrumentIDs, ", ")))
	}
	return fmt.Sprintf("%s [%s]: la bandeja mezcla departamentos: %s", KindMixedDepartment, e.TrayID, strings.Join(parts, "; "))
}

func (e *MixedDepartmentError) Unwrap() error { return ErrValidation }

// DepartmentNames devuelve los nombres de todos los departamentos en conflicto.
func (e *MixedDepartmentError) DepartmentNames() []string {
	names := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		names = append(names, c.DepartmentName)
	}
	return names
}

// NotFoundError bandeja, ítem o mapeo de departamento inexistente.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFound construye un NotFoundError.
func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q no encontrado", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError la cantidad cambió desde la última lectura (otra sesión escribió antes).
type ConflictError struct {
	SubjectID string
	Expected  int
	Actual    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("ítem %s: cantidad esperada %d, actual %d; recargue e intente de nuevo", e.SubjectID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PersistenceError falló la llamada al almacenamiento.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError envuelve err con la operación que falló. Devuelve nil si err es nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is permite errors.Is(err, ErrPersistence) sin perder la causa original en Unwrap.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// PartialSplitError reporta qué bandejas destino se escribieron y cuáles no cuando
// una división multi-paso falla a mitad de camino.
type PartialSplitError struct {
	TrayID     string
	Succeeded  []string
	Failed     []string
	RolledBack bool
	Err        error
}

func (e *PartialSplitError) Error() string {
	state := "sin revertir"
	if e.RolledBack {
		state = "revertida"
	}
	return fmt.Sprintf("división de bandeja %s incompleta (%s): ok=[%s] fallidas=[%s]: %v",
		e.TrayID, state, strings.Join(e.Succeeded, ", "), strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialSplitError) Unwrap() error { return e.Err }
