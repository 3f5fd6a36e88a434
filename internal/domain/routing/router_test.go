package routing_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
)

// ──────────────────────────────────────────────────────────────────────────────
// Directorio de prueba
// ──────────────────────────────────────────────────────────────────────────────

func testCatalog() *routing.Catalog {
	return routing.NewCatalog(
		[]entity.Department{
			{ID: "dep-hair", Name: "Hair", PipelineID: "pipe-hair"},
			{ID: "dep-repair", Name: "Repair", PipelineID: "pipe-repair"},
			{ID: "dep-general", Name: "General"}, // sin PipelineID: se enlaza por nombre
		},
		[]entity.Pipeline{
			{ID: "pipe-hair", Name: "Peluquería"},
			{ID: "pipe-repair", Name: "Reparación"},
			{ID: "pipe-general", Name: "general"},
		},
		[]entity.Stage{
			{ID: "st-hair-2", PipelineID: "pipe-hair", Name: "En proceso", Position: 2},
			{ID: "st-hair-1", PipelineID: "pipe-hair", Name: "New", Position: 1},
			{ID: "st-hair-ret", PipelineID: "pipe-hair", Name: "Return", Position: 0},
			{ID: "st-rep-1", PipelineID: "pipe-repair", Name: "Recepción", Position: 5},
			{ID: "st-rep-2", PipelineID: "pipe-repair", Name: "Diagnóstico", Position: 9},
			{ID: "st-gen-1", PipelineID: "pipe-general", Name: "new", Position: 1},
		},
		[]entity.Instrument{
			{ID: "inst-secador", Name: "Secador", DepartmentID: "dep-hair"},
			{ID: "inst-tijera", Name: "Tijera", PipelineRef: "PELUQUERÍA"},
			{ID: "inst-motor", Name: "Motor", PipelineRef: "pipe-repair"},
			{ID: "inst-pinza", Name: "Pinza", PipelineRef: "reparación"},
			{ID: "inst-libre", Name: "Sin mapeo"},
			{ID: "inst-roto", Name: "Roto", DepartmentID: "dep-inexistente"},
		},
	)
}

func number(n int) *int { return &n }

func tray() *entity.Tray {
	return &entity.Tray{ID: "tray-1", Number: number(12), Status: entity.TrayStatusNew}
}

func items(instruments ...string) []entity.LineItem {
	out := make([]entity.LineItem, 0, len(instruments))
	for i, in := range instruments {
		out = append(out, entity.LineItem{ID: string(rune('a' + i)), TrayID: "tray-1", Kind: entity.KindService, InstrumentID: in, Quantity: 1})
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolución
// ──────────────────────────────────────────────────────────────────────────────

func TestResolve_UnSoloDepartamento(t *testing.T) {
	r := routing.NewRouter(routing.DefaultPolicy())
	dest, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-secador", "inst-tijera")})
	require.NoError(t, err)

	assert.Equal(t, "dep-hair", dest.DepartmentID)
	assert.Equal(t, "pipe-hair", dest.PipelineID)
	assert.Equal(t, "st-hair-1", dest.StageID, "etapa 'new' por nombre, sin distinguir mayúsculas")
	assert.False(t, dest.Fallback)
	assert.False(t, dest.Return)
}

func TestResolve_PipelinePorIdONombre(t *testing.T) {
	r := routing.NewRouter(routing.DefaultPolicy())
	dest, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-motor", "inst-pinza")})
	require.NoError(t, err)
	assert.Equal(t, "dep-repair", dest.DepartmentID)
	assert.Equal(t, "st-rep-1", dest.StageID, "sin etapa 'new' se usa la de menor posición")
}

// Escenario B: "Hair" y "Repair" en la misma bandeja → MixedDepartmentError con ambos.
func TestResolve_EscenarioB_DepartamentosMezclados(t *testing.T) {
	r := routing.NewRouter(routing.DefaultPolicy())
	_, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-tijera", "inst-motor", "inst-pinza")})
	require.Error(t, err)

	var mixed *domain.MixedDepartmentError
	require.True(t, errors.As(err, &mixed))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, []string{"Hair", "Repair"}, mixed.DepartmentNames())
	assert.Equal(t, []string{"inst-tijera"}, mixed.Conflicts[0].InstrumentIDs)
	assert.Equal(t, []string{"inst-motor", "inst-pinza"}, mixed.Conflicts[1].InstrumentIDs)
	assert.Contains(t, err.Error(), "Hair")
	assert.Contains(t, err.Error(), "Repair")
	assert.Contains(t, err.Error(), "inst-motor")
}

func TestResolve_BandejaExentaToleraMezcla(t *testing.T) {
	r := routing.NewRouter(routing.DefaultPolicy())
	tr := tray()
	tr.Exempt = true
	dest, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tr, Items: items("inst-motor", "inst-tijera")})
	require.NoError(t, err)
	assert.Equal(t, "dep-repair", dest.DepartmentID, "se usa el primero encontrado")
}

func TestResolve_RespaldoDeterminista(t *testing.T) {
	r := routing.NewRouter(routing.Policy{FallbackDepartments: []string{"no-existe", "GENERAL", "Repair"}})
	dest, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-libre")})
	require.NoError(t, err)
	assert.Equal(t, "dep-general", dest.DepartmentID)
	assert.Equal(t, "pipe-general", dest.PipelineID, "pipeline enlazado por nombre")
	assert.True(t, dest.Fallback)
}

func TestResolve_SinDepartamentoNiRespaldo(t *testing.T) {
	r := routing.NewRouter(routing.DefaultPolicy())
	_, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-libre")})
	assert.True(t, domain.IsValidationKind(err, domain.KindNoDepartmentResolvable))
}

func TestResolve_BandejaVacia(t *testing.T) {
	r := routing.NewRouter(routing.Policy{FallbackDepartments: []string{"dep-repair"}})

	_, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray()})
	assert.True(t, domain.IsValidationKind(err, domain.KindEmptyTray))

	dest, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), AllowEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, "dep-repair", dest.DepartmentID)
	assert.True(t, dest.Fallback)
}

func TestResolve_EtapaDeDevolucion(t *testing.T) {
	r := routing.NewRouter(routing.DefaultPolicy())
	order := &entity.ServiceOrder{ID: "so-1", CustomerReturn: true}

	dest, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-secador"), Order: order})
	require.NoError(t, err)
	assert.Equal(t, "st-hair-ret", dest.StageID)
	assert.True(t, dest.Return)

	// Pipeline sin etapa de devolución: etapa normal.
	dest, err = r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-motor"), Order: order})
	require.NoError(t, err)
	assert.Equal(t, "st-rep-1", dest.StageID)
	assert.False(t, dest.Return)
}

func TestResolve_MapeosFaltantes(t *testing.T) {
	r := routing.NewRouter(routing.DefaultPolicy())

	_, err := r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-desconocido")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Resolve(testCatalog(), routing.ResolveInput{Tray: tray(), Items: items("inst-roto")})
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "department", nf.Entity)
}
