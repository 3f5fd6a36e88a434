package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
)

var _ repository.DirectoryRepository = (*DirectoryRepo)(nil)

// DirectoryRepo lectura del directorio de departamentos, pipelines, etapas e instrumentos.
type DirectoryRepo struct {
	q Querier
}

// NewDirectoryRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDirectoryRepository(q Querier) *DirectoryRepo {
	return &DirectoryRepo{q: q}
}

func (r *DirectoryRepo) ListDepartments(ctx context.Context) ([]entity.Department, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, COALESCE(pipeline_id, '') FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()
	var list []entity.Department
	for rows.Next() {
		var d entity.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.PipelineID); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *DirectoryRepo) ListPipelines(ctx context.Context) ([]entity.Pipeline, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name FROM pipelines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()
	var list []entity.Pipeline
	for rows.Next() {
		var p entity.Pipeline
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *DirectoryRepo) ListStages(ctx context.Context) ([]entity.Stage, error) {
	rows, err := r.q.Query(ctx, `SELECT id, pipeline_id, name, position FROM stages ORDER BY pipeline_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()
	var list []entity.Stage
	for rows.Next() {
		var s entity.Stage
		if err := rows.Scan(&s.ID, &s.PipelineID, &s.Name, &s.Position); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// InstrumentsByIDs instrumentos pedidos; los inexistentes simplemente no aparecen.
// pipeline_name guarda el id del pipeline o su nombre (datos heredados).
func (r *DirectoryRepo) InstrumentsByIDs(ctx context.Context, ids []string) ([]entity.Instrument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, name, COALESCE(department_id, ''), COALESCE(pipeline_name, '')
		FROM instruments WHERE id = ANY($1)`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()
	var list []entity.Instrument
	for rows.Next() {
		var in entity.Instrument
		if err := rows.Scan(&in.ID, &in.Name, &in.DepartmentID, &in.PipelineRef); err != nil {
			return nil, err
		}
		list = append(list, in)
	}
	return list, rows.Err()
}
