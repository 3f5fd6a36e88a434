package allocation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appalloc "github.com/jhoicas/Bandejas-api/internal/application/allocation"
	"github.com/jhoicas/Bandejas-api/internal/application/audit"
	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/allocation"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func number(n int) *int { return &n }

func setup(t *testing.T) (*memory.Store, *appalloc.UseCase) {
	t.Helper()
	s := memory.NewStore()
	s.PutOrder(entity.ServiceOrder{ID: "so-1"})
	s.PutTray(entity.Tray{ID: "tray-1", Number: number(1), ServiceOrderID: "so-1", Status: entity.TrayStatusNew})
	s.PutTray(entity.Tray{ID: "tray-2", Number: number(2), ServiceOrderID: "so-1", Status: entity.TrayStatusNew})
	rec := audit.NewReconciliationUseCase(s.Items(), s.Events(), s.Snapshots(), nil)
	uc := appalloc.NewUseCase(s, s.Orders(), rec, nil, nil, allocation.WithIDGenerator(sequentialIDs()))
	return s, uc
}

func line(id, trayID, tech string, qty int) entity.LineItem {
	return entity.LineItem{
		ID: id, TrayID: trayID, Kind: entity.KindService, CatalogID: "svc-afilado",
		InstrumentID: "inst-tijera", TechnicianID: tech, Quantity: qty,
	}
}

func toTech(id string, qty int) allocation.SplitRequest {
	return allocation.SplitRequest{Destination: entity.Destination{Type: entity.DestinationTechnician, ID: id}, Quantity: qty}
}

func toTray(id string, qty int) allocation.SplitRequest {
	return allocation.SplitRequest{Destination: entity.Destination{Type: entity.DestinationTray, ID: id}, Quantity: qty}
}

func qtyByID(items []entity.LineItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, li := range items {
		out[li.ID] = li.Quantity
	}
	return out
}

func kindsOf(events []entity.AuditEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// SplitItem
// ──────────────────────────────────────────────────────────────────────────────

func TestSplitItem_RepartoEntreTecnicos(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 5))

	out, err := uc.SplitItem(ctx, appalloc.SplitItemInput{
		ItemID:           "a",
		ExpectedQuantity: number(5),
		Requests:         []allocation.SplitRequest{toTech("tech-2", 2), toTech("tech-3", 1)},
		Actor:            "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Result.Allocated())
	assert.Equal(t, []string{"tray-1"}, out.Trays)

	assert.Equal(t, map[string]int{"a": 2, "new-1": 2, "new-2": 1}, qtyByID(s.AllItems()))
	assert.Equal(t, []string{entity.EventItemCreated, entity.EventItemCreated, entity.EventItemCreated}, kindsOf(s.AllEvents()),
		"primer ciclo: sin base previa, las tres filas se registran como nuevas")
}

func TestSplitItem_CantidadEsperadaObsoletaEsConflicto(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 5))

	_, err := uc.SplitItem(ctx, appalloc.SplitItemInput{
		ItemID: "a", ExpectedQuantity: number(4), Requests: []allocation.SplitRequest{toTech("tech-2", 1)},
	})

	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 5, ce.Actual)
	assert.Equal(t, map[string]int{"a": 5}, qtyByID(s.AllItems()))
	assert.Empty(t, s.AllEvents())
}

func TestSplitItem_ValidacionNoEscribeNada(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 2))

	_, err := uc.SplitItem(ctx, appalloc.SplitItemInput{ItemID: "a", Requests: []allocation.SplitRequest{toTech("tech-2", 3)}})
	assert.True(t, domain.IsValidationKind(err, domain.KindOverAllocation))
	assert.Len(t, s.AllItems(), 1)
}

func TestSplitItem_BandejaDestinoInexistente(t *testing.T) {
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 2))

	_, err := uc.SplitItem(context.Background(), appalloc.SplitItemInput{ItemID: "a", Requests: []allocation.SplitRequest{toTray("tray-x", 1)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSplitItem_LineaInexistente(t *testing.T) {
	_, uc := setup(t)
	_, err := uc.SplitItem(context.Background(), appalloc.SplitItemInput{ItemID: "nope", Requests: []allocation.SplitRequest{toTech("tech-2", 1)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSplitItem_TrasladoTotalEliminaBandejaVacia(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 2))

	out, err := uc.SplitItem(ctx, appalloc.SplitItemInput{ItemID: "a", Requests: []allocation.SplitRequest{toTray("tray-2", 2)}})
	require.NoError(t, err)
	assert.Equal(t, "tray-1", out.DeletedTrayID)
	assert.ElementsMatch(t, []string{"tray-1", "tray-2"}, out.Trays)

	trays := s.AllTrays()
	require.Len(t, trays, 1)
	assert.Equal(t, "tray-2", trays[0].ID)

	items := s.AllItems()
	require.Len(t, items, 1)
	assert.Equal(t, "tray-2", items[0].TrayID)
	assert.Equal(t, "tech-1", items[0].TechnicianID, "el traslado a bandeja conserva el técnico")
}

func TestSplitItem_BandejaConAdjuntosNoSeElimina(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutTray(entity.Tray{ID: "tray-1", Number: number(1), ServiceOrderID: "so-1", AttachmentCount: 2})
	s.PutItems(line("a", "tray-1", "tech-1", 1))

	out, err := uc.SplitItem(ctx, appalloc.SplitItemInput{ItemID: "a", Requests: []allocation.SplitRequest{toTray("tray-2", 1)}})
	require.NoError(t, err)
	assert.Empty(t, out.DeletedTrayID)
	assert.Len(t, s.AllTrays(), 2)
}

func TestSplitItem_FalloDeEscrituraRevierteTodo(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 4))
	s.InjectFault("items.create", 1, errors.New("conexión perdida"))

	_, err := uc.SplitItem(ctx, appalloc.SplitItemInput{ItemID: "a", Requests: []allocation.SplitRequest{toTech("tech-2", 1), toTech("tech-3", 1)}})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, map[string]int{"a": 4}, qtyByID(s.AllItems()), "la primera fila creada también se revierte")
}

// ──────────────────────────────────────────────────────────────────────────────
// MergeItems
// ──────────────────────────────────────────────────────────────────────────────

func TestMergeItems_UneFirmasIguales(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 2), line("b", "tray-1", "tech-1", 3), line("c", "tray-1", "tech-2", 1))

	out, err := uc.MergeItems(ctx, "tray-1", "tech-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Merged)
	assert.Equal(t, map[string]int{"a": 5, "c": 1}, qtyByID(s.AllItems()))
	assert.Contains(t, kindsOf(s.AllEvents()), entity.EventItemsMerged)

	again, err := uc.MergeItems(ctx, "tray-1", "tech-1", "user-1")
	require.NoError(t, err)
	assert.Zero(t, again.Merged)
}

func TestMergeItems_ReportaSerialesRepetidos(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	a := line("a", "tray-1", "tech-1", 2)
	a.Identity = []entity.IdentityGroup{{Brand: "Wahl", Serials: []string{"s1", "s2"}}}
	b := line("b", "tray-1", "tech-1", 3)
	b.Identity = []entity.IdentityGroup{{Brand: "Wahl", Serials: []string{"s2", "s3", "s4"}}}
	s.PutItems(a, b)

	out, err := uc.MergeItems(ctx, "tray-1", "tech-1", "user-1")
	require.NoError(t, err)
	require.Len(t, out.SerialGaps, 1)
	assert.Equal(t, allocation.SerialGap{ItemID: "a", Quantity: 5, SerialCount: 4, DuplicatesDropped: 1}, out.SerialGaps[0])

	var merged *entity.AuditEvent
	for _, e := range s.AllEvents() {
		if e.Kind == entity.EventItemsMerged {
			merged = &e
		}
	}
	require.NotNil(t, merged)
	assert.Contains(t, string(merged.Payload), `"serial_gaps"`)
}

func TestMergeItems_FalloDeEscrituraNoDejaConsolidacionParcial(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 2), line("b", "tray-1", "tech-1", 3), line("d", "tray-1", "tech-1", 1))
	s.InjectFault("items.delete", 1, errors.New("conexión perdida"))

	_, err := uc.MergeItems(ctx, "tray-1", "tech-1", "user-1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, map[string]int{"a": 2, "b": 3, "d": 1}, qtyByID(s.AllItems()), "ni la suma ni el primer borrado quedan aplicados")
	assert.NotContains(t, kindsOf(s.AllEvents()), entity.EventItemsMerged)
}

func TestMergeItems_FalloAlActualizarSobreviviente(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)
	s.PutItems(line("a", "tray-1", "tech-1", 2), line("b", "tray-1", "tech-1", 3))
	s.InjectFault("items.update", 0, errors.New("conexión perdida"))

	_, err := uc.MergeItems(ctx, "tray-1", "tech-1", "user-1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, map[string]int{"a": 2, "b": 3}, qtyByID(s.AllItems()))
	assert.Empty(t, s.AllEvents())
}

func TestMergeItems_SinConciliador(t *testing.T) {
	s, _ := setup(t)
	uc := appalloc.NewUseCase(s, s.Orders(), nil, nil, nil)
	s.PutItems(line("a", "tray-1", "tech-1", 2), line("b", "tray-1", "tech-1", 3))

	out, err := uc.MergeItems(context.Background(), "tray-1", "tech-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Merged)
	assert.Equal(t, map[string]int{"a": 5}, qtyByID(s.AllItems()))
}

func TestMergeItems_BandejaInexistente(t *testing.T) {
	_, uc := setup(t)
	_, err := uc.MergeItems(context.Background(), "tray-x", "", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// EnsurePlaceholder
// ──────────────────────────────────────────────────────────────────────────────

func TestEnsurePlaceholder_UnaPorOrden(t *testing.T) {
	ctx := context.Background()
	s, uc := setup(t)

	first, created, err := uc.EnsurePlaceholder(ctx, "so-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, first.IsPlaceholder())

	second, created, err := uc.EnsurePlaceholder(ctx, "so-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.AllTrays(), 3)
}

func TestEnsurePlaceholder_OrdenInexistente(t *testing.T) {
	_, uc := setup(t)
	_, _, err := uc.EnsurePlaceholder(context.Background(), "so-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
