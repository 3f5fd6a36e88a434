package routing

import (
	"slices"

	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/pkg/textnorm"
)

// Policy parámetros de resolución.
type Policy struct {
	// FallbackDepartments orden determinista de departamentos por defecto (ids o nombres).
	FallbackDepartments []string
	StageNew            string
	StageReturn         string
}

// DefaultPolicy nombres de etapa por defecto y sin departamentos de respaldo.
func DefaultPolicy() Policy {
	return Policy{StageNew: "new", StageReturn: "return"}
}

// ResolveInput bandeja a enrutar con sus líneas y la orden de servicio (puede ser nil).
type ResolveInput struct {
	Tray       *entity.Tray
	Items      []entity.LineItem
	Order      *entity.ServiceOrder
	AllowEmpty bool // enrutamiento de respaldo para bandejas vacías
}

// Destination departamento, pipeline y etapa resueltos.
type Destination struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name"`
	PipelineID     string `json:"pipeline_id"`
	PipelineName   string `json:"pipeline_name"`
	StageID        string `json:"stage_id"`
	StageName      string `json:"stage_name"`
	Fallback       bool   `json:"fallback"` // se usó la lista de respaldo
	Return         bool   `json:"return"`   // etapa de devolución
}

// Router resuelve el destino de una bandeja e impone la regla de departamento único.
type Router struct {
	policy Policy
}

// NewRouter construye el router. Nombres de etapa vacíos toman los valores por defecto.
func NewRouter(policy Policy) *Router {
	def := DefaultPolicy()
	if policy.StageNew == "" {
		policy.StageNew = def.StageNew
	}
	if policy.StageReturn == "" {
		policy.StageReturn = def.StageReturn
	}
	return &Router{policy: policy}
}

type found struct {
	dep         entity.Department
	instruments []string
}

// Resolve devuelve el destino de la bandeja o el error de validación correspondiente.
func (r *Router) Resolve(cat *Catalog, in ResolveInput) (*Destination, error) {
	if in.Tray == nil {
		return nil, domain.NewNotFound("tray", "")
	}
	if len(in.Items) == 0 && !in.AllowEmpty {
		return nil, domain.NewValidationError(domain.KindEmptyTray, in.Tray.ID, "la bandeja no tiene líneas")
	}

	deps, err := r.collect(cat, in.Items)
	if err != nil {
		return nil, err
	}

	var dep entity.Department
	fallback := false
	switch {
	case len(deps) == 0:
		d, ok := r.fallback(cat)
		if !ok {
			return nil, domain.NewValidationError(domain.KindNoDepartmentResolvable, in.Tray.ID,
				"ningún instrumento resuelve a un departamento y no hay departamento de respaldo")
		}
		dep, fallback = d, true
	case len(deps) > 1 && !in.Tray.IsRoutingExempt():
		conflicts := make([]domain.DepartmentConflict, 0, len(deps))
		for _, f := range deps {
			conflicts = append(conflicts, domain.DepartmentConflict{
				DepartmentID:   f.dep.ID,
				DepartmentName: f.dep.Name,
				InstrumentIDs:  f.instruments,
			})
		}
		return nil, &domain.MixedDepartmentError{TrayID: in.Tray.ID, Conflicts: conflicts}
	default:
		// Un solo departamento, o bandeja exenta: el primero encontrado.
		dep = deps[0].dep
	}

	pipeline, ok := cat.PipelineOf(dep)
	if !ok {
		return nil, domain.NewNotFound("pipeline", dep.ID)
	}
	stage, isReturn, err := r.stage(cat, pipeline, in.Order)
	if err != nil {
		return nil, err
	}
	return &Destination{
		DepartmentID:   dep.ID,
		DepartmentName: dep.Name,
		PipelineID:     pipeline.ID,
		PipelineName:   pipeline.Name,
		StageID:        stage.ID,
		StageName:      stage.Name,
		Fallback:       fallback,
		Return:         isReturn,
	}, nil
}

// collect resuelve el departamento de cada línea con instrumento, en orden de aparición.
func (r *Router) collect(cat *Catalog, items []entity.LineItem) ([]*found, error) {
	var out []*found
	index := make(map[string]*found)
	for _, li := range items {
		if li.InstrumentID == "" {
			continue
		}
		inst, ok := cat.Instrument(li.InstrumentID)
		if !ok {
			return nil, domain.NewNotFound("instrument", li.InstrumentID)
		}
		dep, ok, err := departmentOf(cat, inst, li)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		f, seen := index[dep.ID]
		if !seen {
			f = &found{dep: dep}
			index[dep.ID] = f
			out = append(out, f)
		}
		if !slices.Contains(f.instruments, inst.ID) {
			f.instruments = append(f.instruments, inst.ID)
		}
	}
	return out, nil
}

// departmentOf: departamento del instrumento, luego su pipeline (id o nombre), luego el de la línea.
func departmentOf(cat *Catalog, inst entity.Instrument, li entity.LineItem) (entity.Department, bool, error) {
	if inst.DepartmentID != "" {
		d, ok := cat.Department(inst.DepartmentID)
		if !ok {
			return entity.Department{}, false, domain.NewNotFound("department", inst.DepartmentID)
		}
		return d, true, nil
	}
	if inst.PipelineRef != "" {
		if p, ok := cat.Pipeline(inst.PipelineRef); ok {
			if d, ok := cat.DepartmentOfPipeline(p.ID); ok {
				return d, true, nil
			}
		}
		// Algunos registros guardan directamente el nombre del departamento.
		if d, ok := cat.Department(inst.PipelineRef); ok {
			return d, true, nil
		}
	}
	if li.DepartmentID != "" {
		if d, ok := cat.Department(li.DepartmentID); ok {
			return d, true, nil
		}
	}
	return entity.Department{}, false, nil
}

func (r *Router) fallback(cat *Catalog) (entity.Department, bool) {
	for _, ref := range r.policy.FallbackDepartments {
		if d, ok := cat.Department(ref); ok {
			return d, true
		}
	}
	return entity.Department{}, false
}

// stage etapa "new" (por nombre o la de menor posición); "return" si el cliente trae la marca
// de devolución y el pipeline la define.
func (r *Router) stage(cat *Catalog, p entity.Pipeline, order *entity.ServiceOrder) (entity.Stage, bool, error) {
	stages := cat.Stages(p.ID)
	if len(stages) == 0 {
		return entity.Stage{}, false, domain.NewNotFound("stage", p.ID)
	}
	if order != nil && order.CustomerReturn {
		for _, s := range stages {
			if textnorm.Equal(s.Name, r.policy.StageReturn) {
				return s, true, nil
			}
		}
	}
	for _, s := range stages {
		if textnorm.Equal(s.Name, r.policy.StageNew) {
			return s, false, nil
		}
	}
	return stages[0], false, nil
}
