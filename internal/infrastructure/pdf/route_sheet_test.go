package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
)

func number(n int) *int { return &n }

func sampleSheet() ports.RouteSheet {
	return ports.RouteSheet{
		Tray: entity.Tray{ID: "tray-1", Number: number(12), Status: entity.TrayStatusRouted, ServiceOrderID: "so-1"},
		Destination: &routing.Destination{
			DepartmentID: "dep-hair", DepartmentName: "Hair", PipelineName: "Peluquería", StageName: "New",
		},
		Items: []entity.LineItem{{
			ID: "a", Kind: entity.KindService, CatalogID: "svc-afilado", InstrumentID: "inst-tijera", Quantity: 2,
			Identity: []entity.IdentityGroup{{Brand: "Wahl", Serials: []string{"S1", ""}, Warranty: true}},
		}},
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestRenderRouteSheet_GeneraPDF(t *testing.T) {
	doc, err := NewRouteSheetGenerator("").RenderRouteSheet(context.Background(), sampleSheet())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")), "debe ser un documento PDF")
}

func TestRenderRouteSheet_SinDestinoNiLineas(t *testing.T) {
	sheet := sampleSheet()
	sheet.Destination = nil
	sheet.Unresolved = "MixedDepartment [tray-1]: la bandeja mezcla departamentos"
	sheet.Items = nil
	sheet.Tray.Number = nil

	doc, err := NewRouteSheetGenerator("Taller").RenderRouteSheet(context.Background(), sheet)
	require.NoError(t, err)
	assert.NotEmpty(t, doc)
}

func TestRenderRouteSheet_ContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRouteSheetGenerator("").RenderRouteSheet(ctx, sampleSheet())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerialSummary(t *testing.T) {
	got := serialSummary([]entity.IdentityGroup{
		{Brand: "Wahl", Serials: []string{"S1", "", "S2"}, Warranty: true},
		{Serials: []string{""}},
		{Serials: []string{"X9"}},
	})
	assert.Equal(t, "Wahl: S1, S2 (garantía); Sin marca: X9", got)
}
