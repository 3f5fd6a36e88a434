package routing

import (
	"sort"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/pkg/textnorm"
)

// Catalog vista de solo lectura del directorio, indexada por id y por nombre normalizado.
// Se construye una vez por operación (o por lote) y no se modifica.
type Catalog struct {
	departments   map[string]entity.Department // id → depto
	departmentRef map[string]entity.Department // id o nombre (Fold) → depto
	pipelines     map[string]entity.Pipeline
	pipelineRef   map[string]entity.Pipeline
	byPipeline    map[string]entity.Department // pipeline id → depto dueño
	stages        map[string][]entity.Stage    // pipeline id → etapas por posición
	instruments   map[string]entity.Instrument
}

// NewCatalog indexa las lecturas del directorio.
func NewCatalog(
	departments []entity.Department,
	pipelines []entity.Pipeline,
	stages []entity.Stage,
	instruments []entity.Instrument,
) *Catalog {
	c := &Catalog{
		departments:   make(map[string]entity.Department, len(departments)),
		departmentRef: make(map[string]entity.Department, 2*len(departments)),
		pipelines:     make(map[string]entity.Pipeline, len(pipelines)),
		pipelineRef:   make(map[string]entity.Pipeline, 2*len(pipelines)),
		byPipeline:    make(map[string]entity.Department, len(departments)),
		stages:        make(map[string][]entity.Stage),
		instruments:   make(map[string]entity.Instrument, len(instruments)),
	}
	for _, p := range pipelines {
		c.pipelines[p.ID] = p
		// El nombre no pisa un id existente.
		if _, ok := c.pipelineRef[textnorm.Fold(p.Name)]; !ok {
			c.pipelineRef[textnorm.Fold(p.Name)] = p
		}
		c.pipelineRef[textnorm.Fold(p.ID)] = p
	}
	for _, d := range departments {
		c.departments[d.ID] = d
		if _, ok := c.departmentRef[textnorm.Fold(d.Name)]; !ok {
			c.departmentRef[textnorm.Fold(d.Name)] = d
		}
		c.departmentRef[textnorm.Fold(d.ID)] = d
	}
	for _, d := range departments {
		pipelineID := d.PipelineID
		if pipelineID == "" {
			// Datos heredados: el pipeline se llama igual que el departamento.
			if p, ok := c.pipelineRef[textnorm.Fold(d.Name)]; ok {
				pipelineID = p.ID
			}
		}
		if pipelineID != "" {
			if _, taken := c.byPipeline[pipelineID]; !taken {
				c.byPipeline[pipelineID] = d
			}
		}
	}
	for _, s := range stages {
		c.stages[s.PipelineID] = append(c.stages[s.PipelineID], s)
	}
	for id := range c.stages {
		list := c.stages[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Position < list[j].Position })
	}
	for _, in := range instruments {
		c.instruments[in.ID] = in
	}
	return c
}

// Instrument busca un instrumento por id.
func (c *Catalog) Instrument(id string) (entity.Instrument, bool) {
	in, ok := c.instruments[id]
	return in, ok
}

// Department busca un departamento por id o nombre, sin distinguir mayúsculas ni acentos compuestos.
func (c *Catalog) Department(ref string) (entity.Department, bool) {
	if d, ok := c.departments[ref]; ok {
		return d, true
	}
	d, ok := c.departmentRef[textnorm.Fold(ref)]
	return d, ok
}

// Pipeline busca un pipeline por id o nombre.
func (c *Catalog) Pipeline(ref string) (entity.Pipeline, bool) {
	if p, ok := c.pipelines[ref]; ok {
		return p, true
	}
	p, ok := c.pipelineRef[textnorm.Fold(ref)]
	return p, ok
}

// PipelineOf devuelve el pipeline de la cola del departamento.
func (c *Catalog) PipelineOf(d entity.Department) (entity.Pipeline, bool) {
	if d.PipelineID != "" {
		return c.Pipeline(d.PipelineID)
	}
	return c.Pipeline(d.Name)
}

// DepartmentOfPipeline devuelve el departamento dueño de un pipeline.
func (c *Catalog) DepartmentOfPipeline(pipelineID string) (entity.Department, bool) {
	d, ok := c.byPipeline[pipelineID]
	return d, ok
}

// Stages etapas del pipeline en orden de posición.
func (c *Catalog) Stages(pipelineID string) []entity.Stage {
	return c.stages[pipelineID]
}
