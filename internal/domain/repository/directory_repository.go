package repository

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// DirectoryRepository lectura del directorio de departamentos, pipelines, etapas e instrumentos.
// El motor nunca lo modifica.
type DirectoryRepository interface {
	ListDepartments(ctx context.Context) ([]entity.Department, error)
	ListPipelines(ctx context.Context) ([]entity.Pipeline, error)
	ListStages(ctx context.Context) ([]entity.Stage, error)
	InstrumentsByIDs(ctx context.Context, ids []string) ([]entity.Instrument, error)
}
