package routing

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
)

// directoryCache lecturas del directorio de una sola operación o lote.
// Departamentos, pipelines y etapas se leen una vez; los instrumentos se piden solo si faltan.
type directoryCache struct {
	repo        repository.DirectoryRepository
	loaded      bool
	departments []entity.Department
	pipelines   []entity.Pipeline
	stages      []entity.Stage
	instruments map[string]entity.Instrument
	missing     map[string]bool
}

func newDirectoryCache(repo repository.DirectoryRepository) *directoryCache {
	return &directoryCache{repo: repo, instruments: make(map[string]entity.Instrument), missing: make(map[string]bool)}
}

// catalog devuelve un catálogo que cubre los instrumentos de items.
func (c *directoryCache) catalog(ctx context.Context, items []entity.LineItem) (*routing.Catalog, error) {
	if !c.loaded {
		var err error
		if c.departments, err = c.repo.ListDepartments(ctx); err != nil {
			return nil, domain.NewPersistenceError("leer departamentos", err)
		}
		if c.pipelines, err = c.repo.ListPipelines(ctx); err != nil {
			return nil, domain.NewPersistenceError("leer pipelines", err)
		}
		if c.stages, err = c.repo.ListStages(ctx); err != nil {
			return nil, domain.NewPersistenceError("leer etapas", err)
		}
		c.loaded = true
	}

	var want []string
	for _, li := range items {
		id := li.InstrumentID
		if id == "" || c.missing[id] {
			continue
		}
		if _, ok := c.instruments[id]; !ok {
			want = append(want, id)
			c.missing[id] = true
		}
	}
	if len(want) > 0 {
		list, err := c.repo.InstrumentsByIDs(ctx, want)
		if err != nil {
			for _, id := range want {
				delete(c.missing, id)
			}
			return nil, domain.NewPersistenceError("leer instrumentos", err)
		}
		for _, in := range list {
			c.instruments[in.ID] = in
			delete(c.missing, in.ID)
		}
	}

	all := make([]entity.Instrument, 0, len(c.instruments))
	for _, in := range c.instruments {
		all = append(all, in)
	}
	return routing.NewCatalog(c.departments, c.pipelines, c.stages, all), nil
}
