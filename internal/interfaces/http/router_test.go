package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appalloc "github.com/jhoicas/Bandejas-api/internal/application/allocation"
	"github.com/jhoicas/Bandejas-api/internal/application/audit"
	approuting "github.com/jhoicas/Bandejas-api/internal/application/routing"
	"github.com/jhoicas/Bandejas-api/internal/application/traysplit"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
	"github.com/jhoicas/Bandejas-api/internal/infrastructure/memory"
	"github.com/jhoicas/Bandejas-api/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/Bandejas-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/Bandejas-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Aplicación completa sobre el store en memoria
// ──────────────────────────────────────────────────────────────────────────────

func number(n int) *int { return &n }

func seed(s *memory.Store) {
	s.PutDirectory(
		[]entity.Department{
			{ID: "dep-hair", Name: "Hair", PipelineID: "pipe-hair"},
			{ID: "dep-repair", Name: "Repair", PipelineID: "pipe-repair"},
		},
		[]entity.Pipeline{
			{ID: "pipe-hair", Name: "Peluquería"},
			{ID: "pipe-repair", Name: "Reparación"},
		},
		[]entity.Stage{
			{ID: "st-hair-new", PipelineID: "pipe-hair", Name: "New", Position: 1},
			{ID: "st-rep-new", PipelineID: "pipe-repair", Name: "new", Position: 1},
		},
		[]entity.Instrument{
			{ID: "inst-tijera", Name: "Tijera", DepartmentID: "dep-hair"},
			{ID: "inst-motor", Name: "Motor", DepartmentID: "dep-repair"},
		},
	)
	s.PutOrder(entity.ServiceOrder{ID: "so-1"})
	s.PutTray(entity.Tray{ID: "tray-1", Number: number(1), ServiceOrderID: "so-1", Status: entity.TrayStatusNew})
	s.PutTray(entity.Tray{ID: "tray-2", Number: number(2), ServiceOrderID: "so-1", Status: entity.TrayStatusNew})
	s.PutItems(
		entity.LineItem{ID: "a", TrayID: "tray-1", Kind: entity.KindService, CatalogID: "svc-afilado", InstrumentID: "inst-tijera", Quantity: 3},
		entity.LineItem{ID: "b", TrayID: "tray-1", Kind: entity.KindPart, CatalogID: "rep-resorte", InstrumentID: "inst-tijera", Quantity: 2},
		entity.LineItem{ID: "m1", TrayID: "tray-2", Kind: entity.KindService, CatalogID: "svc-afilado", InstrumentID: "inst-tijera", Quantity: 1},
		entity.LineItem{ID: "m2", TrayID: "tray-2", Kind: entity.KindService, CatalogID: "svc-motor", InstrumentID: "inst-motor", Quantity: 1},
	)
}

func newTestServer(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	s := memory.NewStore()
	seed(s)

	rec := audit.NewReconciliationUseCase(s.Items(), s.Events(), s.Snapshots(), nil)
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Allocation: appalloc.NewUseCase(s, s.Orders(), rec, nil, nil),
		Routing: approuting.NewUseCase(approuting.Deps{
			TxRunner:  s,
			Trays:     s.Trays(),
			Items:     s.Items(),
			Orders:    s.Orders(),
			Directory: s.Directory(),
			Recorder:  rec,
			Sheets:    pdf.NewRouteSheetGenerator(""),
		}, routing.DefaultPolicy()),
		TraySplit: traysplit.NewOrchestrator(s, rec, nil, nil),
		Audit:     rec,
		JWTSecret: testJWTSecret,
	})
	return app, s
}

// call envía la petición con el rol indicado y decodifica la respuesta JSON.
func call(t *testing.T, app *fiber.App, method, path, role string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func portion(typ, id string, qty int) map[string]any {
	return map[string]any{"type": typ, "id": id, "quantity": qty}
}

// ──────────────────────────────────────────────────────────────────────────────
// Líneas
// ──────────────────────────────────────────────────────────────────────────────

func TestSplitItem_Reparto(t *testing.T) {
	app, s := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/items/a/split", pkgjwt.RoleTechnician, map[string]any{
		"expected_quantity": 3,
		"portions":          []any{portion("technician", "tech-1", 2)},
	})
	require.Equal(t, http.StatusOK, status, body)

	assert.Equal(t, "a", body["source_id"])
	created := body["created"].([]any)
	require.Len(t, created, 1)
	assert.EqualValues(t, 2, created[0].(map[string]any)["quantity"])
	assert.Equal(t, "tech-1", created[0].(map[string]any)["technician_id"])
	assert.EqualValues(t, 1, body["updated"].(map[string]any)["quantity"])

	total := 0
	for _, li := range s.AllItems() {
		if li.TrayID == "tray-1" {
			total += li.Quantity
		}
	}
	assert.Equal(t, 5, total, "la división conserva la cantidad de la bandeja")
}

func TestSplitItem_CantidadCambio(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/items/a/split", pkgjwt.RoleTechnician, map[string]any{
		"expected_quantity": 7,
		"portions":          []any{portion("technician", "tech-1", 1)},
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["code"])
	assert.Equal(t, "a", body["subject_id"])
	details := body["details"].(map[string]any)
	assert.EqualValues(t, 7, details["expected"])
	assert.EqualValues(t, 3, details["actual"])
}

func TestSplitItem_SobreAsignacion(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/items/a/split", pkgjwt.RoleTechnician, map[string]any{
		"portions": []any{portion("technician", "tech-1", 9)},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "OverAllocation", body["code"])
	assert.Equal(t, "a", body["subject_id"])
}

func TestSplitItem_CantidadNegativa(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/items/a/split", pkgjwt.RoleTechnician, map[string]any{
		"portions": []any{portion("technician", "tech-1", -1)},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidQuantity", body["code"])
}

func TestSplitItem_LineaInexistente(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/items/nope/split", pkgjwt.RoleTechnician, map[string]any{
		"portions": []any{portion("technician", "tech-1", 1)},
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestSplitItem_CuerpoInvalido(t *testing.T) {
	app, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/items/a/split", bytes.NewBufferString("{no-json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenForRole(t, pkgjwt.RoleTechnician))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSplitItem_RolSinPermiso(t *testing.T) {
	app, _ := newTestServer(t)
	status, _ := call(t, app, http.MethodPost, "/api/items/a/split", pkgjwt.RoleFrontDesk, map[string]any{
		"portions": []any{portion("technician", "tech-1", 1)},
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRutas_SinToken(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodGet, "/api/trays/tray-1/destination", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_TOKEN", body["code"])
}

func TestMergeItems_SinCuerpo(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/trays/tray-1/merge", pkgjwt.RoleTechnician, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "tray-1", body["tray_id"])
	assert.EqualValues(t, 0, body["merged"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Enrutamiento
// ──────────────────────────────────────────────────────────────────────────────

func TestResolveDestination_UnDepartamento(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodGet, "/api/trays/tray-1/destination", pkgjwt.RoleFrontDesk, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "dep-hair", body["department_id"])
	assert.Equal(t, "st-hair-new", body["stage_id"])
}

func TestResolveDestination_DepartamentosMezclados(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodGet, "/api/trays/tray-2/destination", pkgjwt.RoleFrontDesk, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "MixedDepartment", body["code"])
	assert.Equal(t, "tray-2", body["subject_id"])
	assert.Len(t, body["details"], 2)
	assert.Contains(t, body["message"], "Hair")
	assert.Contains(t, body["message"], "Repair")
}

func TestSendTrays_LoteConFallo(t *testing.T) {
	app, s := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/trays/send", pkgjwt.RoleFrontDesk, map[string]any{
		"tray_ids": []string{"tray-1", "tray-2"},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["skipped"])

	routed := body["routed"].([]any)
	require.Len(t, routed, 1)
	first := routed[0].(map[string]any)
	assert.Equal(t, "tray-1", first["tray_id"])
	assert.Equal(t, true, first["first_entry"])

	failed := body["failed"].([]any)
	require.Len(t, failed, 1)
	failure := failed[0].(map[string]any)
	assert.Equal(t, "tray-2", failure["tray_id"])
	assert.Equal(t, "MixedDepartment", failure["error"].(map[string]any)["code"])

	for _, tr := range s.AllTrays() {
		if tr.ID == "tray-1" {
			assert.Equal(t, entity.TrayStatusRouted, tr.Status)
			assert.Equal(t, "pipe-hair", tr.PipelineID)
		}
	}
}

func TestRouteSheet_PDF(t *testing.T) {
	app, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/trays/tray-2/sheet", nil)
	req.Header.Set("Authorization", tokenForRole(t, pkgjwt.RoleFrontDesk))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode, "una bandeja mezclada también se imprime")
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestRouteSheet_BandejaInexistente(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodGet, "/api/trays/nope/sheet", pkgjwt.RoleFrontDesk, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestSendTrays_SinBandejas(t *testing.T) {
	app, _ := newTestServer(t)
	status, _ := call(t, app, http.MethodPost, "/api/trays/send", pkgjwt.RoleFrontDesk, map[string]any{"tray_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)
}

// ──────────────────────────────────────────────────────────────────────────────
// División de bandejas
// ──────────────────────────────────────────────────────────────────────────────

func assignment(owner string, claims ...map[string]any) map[string]any {
	return map[string]any{"owner_id": owner, "claims": claims}
}

func claim(itemID string, qty int) map[string]any {
	return map[string]any{"item_id": itemID, "quantity": qty}
}

func TestSplitTray_DosBandejas(t *testing.T) {
	app, s := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/trays/tray-1/split", pkgjwt.RoleTechnician, map[string]any{
		"assignments": []any{
			assignment("tech-1", claim("a", 3)),
			assignment("tech-2", claim("b", 2)),
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	ids := body["tray_ids"].([]any)
	require.Len(t, ids, 2)
	assert.Equal(t, "tray-1", ids[0])
	assert.Len(t, s.AllTrays(), 3)

	status, events := call(t, app, http.MethodGet, "/api/trays/tray-1/events", pkgjwt.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	kinds := []string{}
	for _, e := range events["events"].([]any) {
		kinds = append(kinds, e.(map[string]any)["kind"].(string))
	}
	assert.Contains(t, kinds, entity.EventTraySplit)
}

func TestSplitTray_UnaSolaAsignacion(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/trays/tray-1/split", pkgjwt.RoleTechnician, map[string]any{
		"assignments": []any{assignment("tech-1", claim("a", 3), claim("b", 2))},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidAssignments", body["code"])
}

func TestSplitTray_ConservacionViolada(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/trays/tray-1/split", pkgjwt.RoleTechnician, map[string]any{
		"assignments": []any{
			assignment("tech-1", claim("a", 1), claim("b", 2)),
			assignment("tech-2", claim("a", 1)),
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ConservationViolation", body["code"])
}

func TestSplitTray_FalloParcial(t *testing.T) {
	app, s := newTestServer(t)
	s.InjectFault("trays.create", 0, errors.New("conexión perdida"))

	status, body := call(t, app, http.MethodPost, "/api/trays/tray-1/split", pkgjwt.RoleTechnician, map[string]any{
		"assignments": []any{
			assignment("tech-1", claim("a", 3)),
			assignment("tech-2", claim("b", 2)),
		},
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "PARTIAL_SPLIT", body["code"])
	assert.Equal(t, "tray-1", body["subject_id"])
	details := body["details"].(map[string]any)
	assert.Equal(t, true, details["rolled_back"])
	assert.Len(t, details["failed"], 1)
	assert.Len(t, s.AllTrays(), 2, "nada queda escrito")
}

// ──────────────────────────────────────────────────────────────────────────────
// Auditoría y bandejas sin asignar
// ──────────────────────────────────────────────────────────────────────────────

func TestReconcile_Idempotente(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/trays/tray-1/reconcile", pkgjwt.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 2, body["created"])
	assert.EqualValues(t, 2, body["logged"])
	assert.Equal(t, true, body["baseline_advanced"])

	_, body = call(t, app, http.MethodPost, "/api/trays/tray-1/reconcile", pkgjwt.RoleAdmin, nil)
	assert.EqualValues(t, 0, body["logged"])
}

func TestReconcile_SoloAdmin(t *testing.T) {
	app, _ := newTestServer(t)
	status, _ := call(t, app, http.MethodPost, "/api/trays/tray-1/reconcile", pkgjwt.RoleTechnician, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestEnsurePlaceholder_CreaUnaVez(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/service-orders/so-1/placeholder", pkgjwt.RoleFrontDesk, nil)
	require.Equal(t, http.StatusCreated, status, body)
	tray := body["tray"].(map[string]any)
	assert.Nil(t, tray["number"])
	assert.Equal(t, "sin asignar", tray["label"])

	status, again := call(t, app, http.MethodPost, "/api/service-orders/so-1/placeholder", pkgjwt.RoleFrontDesk, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, again["created"])
	assert.Equal(t, tray["id"], again["tray"].(map[string]any)["id"])
}

func TestEnsurePlaceholder_OrdenInexistente(t *testing.T) {
	app, _ := newTestServer(t)
	status, body := call(t, app, http.MethodPost, "/api/service-orders/so-x/placeholder", pkgjwt.RoleFrontDesk, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "so-x", body["subject_id"])
}
