// Package pdf genera la hoja de ruta impresa que viaja con cada bandeja física.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Bandeja N° + estado   │  Orden de servicio + fecha │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DESTINO: Departamento / Pipeline / Etapa (o motivo)        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Tipo | Catálogo | Instrumento | Técnico      │
//	│         seriales por línea                                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR con el id de la bandeja                         │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 170, Green: 30, Blue: 30}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// RouteSheetGenerator implementa ports.RouteSheetRenderer usando Maroto v2.
type RouteSheetGenerator struct {
	title string
}

var _ ports.RouteSheetRenderer = (*RouteSheetGenerator)(nil)

// NewRouteSheetGenerator construye el generador; title aparece en los metadatos del PDF.
func NewRouteSheetGenerator(title string) *RouteSheetGenerator {
	if title == "" {
		title = "Hoja de ruta"
	}
	return &RouteSheetGenerator{title: title}
}

// RenderRouteSheet genera el PDF y devuelve sus bytes.
func (g *RouteSheetGenerator) RenderRouteSheet(ctx context.Context, sheet ports.RouteSheet) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(g.title+" "+sheet.Tray.Label(), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(sheet))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(destinationRow(sheet))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range itemRows(sheet.Items) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(sheet.Tray))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar hoja de ruta: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: número de bandeja y estado (izq), orden de servicio y fecha (der).
func headerRow(sheet ports.RouteSheet) core.Row {
	t := sheet.Tray
	status := t.Status
	if t.SplitOrigin {
		status += " (origen de división)"
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New("BANDEJA "+strings.ToUpper(t.Label()), props.Text{
				Style: fontstyle.Bold, Size: 14, Color: colorPrimary, Top: 1,
			}),
			text.New("Estado: "+nonEmpty(status, "-"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("HOJA DE RUTA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New("Orden: "+nonEmpty(t.ServiceOrderID, "-"), props.Text{
				Size: 9, Align: align.Right, Top: 7,
			}),
			text.New("Emitida: "+sheet.GeneratedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 13, Color: colorGray,
			}),
		),
	)
}

// destinationRow: destino resuelto o el motivo por el que no se pudo enrutar.
func destinationRow(sheet ports.RouteSheet) core.Row {
	title := text.New("DESTINO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1})
	d := sheet.Destination
	if d == nil {
		return row.New(14).Add(col.New(12).Add(
			title,
			text.New("Sin destino: "+nonEmpty(sheet.Unresolved, "no resuelto"), props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 7, Color: colorAlert,
			}),
		))
	}
	detail := fmt.Sprintf("Pipeline: %s   |   Etapa: %s", nonEmpty(d.PipelineName, d.PipelineID), nonEmpty(d.StageName, d.StageID))
	if d.Fallback {
		detail += "   |   departamento de respaldo"
	}
	if d.Return {
		detail += "   |   devolución"
	}
	return row.New(16).Add(col.New(12).Add(
		title,
		text.New(d.DepartmentName, props.Text{Style: fontstyle.Bold, Size: 11, Top: 5}),
		text.New(detail, props.Text{Size: 8, Top: 11, Color: colorGray}),
	))
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Tipo", 2, align.Left),
		h("Catálogo", 3, align.Left),
		h("Instrumento", 3, align.Left),
		h("Técnico", 3, align.Left),
	)
}

// itemRows: una fila por línea y, debajo, sus seriales si los tiene.
func itemRows(items []entity.LineItem) []core.Row {
	if len(items) == 0 {
		return []core.Row{row.New(8).Add(col.New(12).Add(
			text.New("Bandeja vacía", props.Text{Size: 8, Align: align.Center, Top: 2, Color: colorGray}),
		))}
	}
	out := make([]core.Row, 0, len(items))
	for _, li := range items {
		qty := fmt.Sprintf("%d", li.Quantity)
		if li.UnrepairableQuantity > 0 {
			qty = fmt.Sprintf("%d (%d NR)", li.Quantity, li.UnrepairableQuantity)
		}
		kind := kindLabel(li.Kind)
		if li.Urgent {
			kind += " · urgente"
		}
		cell := func(s string, size int, a align.Type) core.Col {
			return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1}))
		}
		out = append(out, row.New(7).Add(
			cell(qty, 1, align.Center),
			cell(kind, 2, align.Left),
			cell(nonEmpty(li.CatalogID, "-"), 3, align.Left),
			cell(nonEmpty(li.InstrumentID, "-"), 3, align.Left),
			cell(nonEmpty(li.TechnicianID, "sin técnico"), 3, align.Left),
		))
		if s := serialSummary(li.Identity); s != "" {
			out = append(out, row.New(5).Add(col.New(12).Add(
				text.New(s, props.Text{Size: 6.5, Color: colorGray, Left: 4}),
			)))
		}
	}
	return out
}

// footerRow: QR con el id de la bandeja para escanear al recibirla en el departamento.
func footerRow(t entity.Tray) core.Row {
	return row.New(40).Add(
		col.New(3).Add(code.NewQr(t.ID, props.Rect{Percent: 95, Center: true})),
		col.New(9).Add(
			text.New("Escanee el código al recibir la bandeja.", props.Text{Size: 8, Top: 4, Left: 3, Color: colorGray}),
			text.New(t.ID, props.Text{Size: 7, Top: 12, Left: 3, Color: colorGray}),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func kindLabel(k entity.LineItemKind) string {
	switch k {
	case entity.KindService:
		return "Servicio"
	case entity.KindPart:
		return "Repuesto"
	case entity.KindBareInstrument:
		return "Instrumento"
	}
	return string(k)
}

// serialSummary "Marca: s1, s2 (garantía); ..." con los seriales no vacíos de cada grupo.
func serialSummary(groups []entity.IdentityGroup) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		var serials []string
		for _, s := range g.Serials {
			if s != "" {
				serials = append(serials, s)
			}
		}
		if len(serials) == 0 && g.Brand == "" {
			continue
		}
		p := nonEmpty(g.Brand, "Sin marca")
		if len(serials) > 0 {
			p += ": " + strings.Join(serials, ", ")
		}
		if g.Warranty {
			p += " (garantía)"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
