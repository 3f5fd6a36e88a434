package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
	"github.com/jhoicas/Bandejas-api/pkg/logger"
)

// EventRecorder registra eventos de primera ocurrencia.
type EventRecorder interface {
	RecordOnce(ctx context.Context, event *entity.AuditEvent) (bool, error)
}

// UseCase resolución de destino y envío por lotes de bandejas a la cola de su departamento.
type UseCase struct {
	txRunner  ports.TxRunner
	trays     repository.TrayRepository
	items     repository.LineItemRepository
	orders    repository.ServiceOrderRepository
	directory repository.DirectoryRepository
	router    *routing.Router
	recorder  EventRecorder
	notifier  ports.Notifier
	sheets    ports.RouteSheetRenderer
	log       *logger.Logger
	now       func() time.Time

	inFlight atomic.Bool
}

// Deps dependencias del caso de uso.
type Deps struct {
	TxRunner  ports.TxRunner
	Trays     repository.TrayRepository
	Items     repository.LineItemRepository
	Orders    repository.ServiceOrderRepository
	Directory repository.DirectoryRepository
	Recorder  EventRecorder
	Notifier  ports.Notifier           // opcional
	Sheets    ports.RouteSheetRenderer // opcional
	Log       *logger.Logger
}

// NewUseCase construye el caso de uso con la política de resolución dada.
func NewUseCase(d Deps, policy routing.Policy) *UseCase {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &UseCase{
		txRunner:  d.TxRunner,
		trays:     d.Trays,
		items:     d.Items,
		orders:    d.Orders,
		directory: d.Directory,
		router:    routing.NewRouter(policy),
		recorder:  d.Recorder,
		notifier:  d.Notifier,
		sheets:    d.Sheets,
		log:       log.Component("routing"),
		now:       time.Now,
	}
}

// ResolveOptions opciones de resolución.
type ResolveOptions struct {
	AllowEmpty bool
}

// ResolveDestination calcula el destino de la bandeja sin modificar nada.
func (uc *UseCase) ResolveDestination(ctx context.Context, trayID string, opts ResolveOptions) (*routing.Destination, error) {
	return uc.resolve(ctx, newDirectoryCache(uc.directory), trayID, opts)
}

func (uc *UseCase) resolve(ctx context.Context, cache *directoryCache, trayID string, opts ResolveOptions) (*routing.Destination, error) {
	tray, err := uc.trays.GetByID(ctx, trayID)
	if err != nil {
		return nil, domain.NewPersistenceError("leer bandeja", err)
	}
	if tray == nil {
		return nil, domain.NewNotFound("tray", trayID)
	}
	items, err := uc.items.ListByTray(ctx, trayID)
	if err != nil {
		return nil, domain.NewPersistenceError("listar líneas", err)
	}
	var order *entity.ServiceOrder
	if tray.ServiceOrderID != "" {
		if order, err = uc.orders.GetByID(ctx, tray.ServiceOrderID); err != nil {
			return nil, domain.NewPersistenceError("leer orden de servicio", err)
		}
	}
	cat, err := cache.catalog(ctx, items)
	if err != nil {
		return nil, err
	}
	return uc.router.Resolve(cat, routing.ResolveInput{Tray: tray, Items: items, Order: order, AllowEmpty: opts.AllowEmpty})
}

// ErrNoRouteSheets no hay generador de hojas de ruta configurado.
var ErrNoRouteSheets = errors.New("routing: generador de hojas de ruta no configurado")

// RouteSheet genera la hoja de ruta de la bandeja. Un destino no resoluble (departamentos
// mezclados, sin respaldo) no impide imprimirla: el motivo se incluye en el documento.
func (uc *UseCase) RouteSheet(ctx context.Context, trayID string) ([]byte, error) {
	if uc.sheets == nil {
		return nil, ErrNoRouteSheets
	}
	tray, err := uc.trays.GetByID(ctx, trayID)
	if err != nil {
		return nil, domain.NewPersistenceError("leer bandeja", err)
	}
	if tray == nil {
		return nil, domain.NewNotFound("tray", trayID)
	}
	items, err := uc.items.ListByTray(ctx, trayID)
	if err != nil {
		return nil, domain.NewPersistenceError("listar líneas", err)
	}
	sheet := ports.RouteSheet{Tray: *tray, Items: items, GeneratedAt: uc.now()}

	dest, err := uc.resolve(ctx, newDirectoryCache(uc.directory), trayID, ResolveOptions{AllowEmpty: true})
	switch {
	case err == nil:
		sheet.Destination = dest
	case errors.Is(err, domain.ErrValidation):
		sheet.Unresolved = err.Error()
	default:
		return nil, err
	}
	return uc.sheets.RenderRouteSheet(ctx, sheet)
}

// TrayOutcome resultado del envío de una bandeja.
type TrayOutcome struct {
	TrayID      string
	Destination *routing.Destination
	FirstEntry  bool // primera entrada registrada al departamento
	Err         error
}

// BatchReport resultado de un lote. Skipped indica que ya había otro lote en curso.
type BatchReport struct {
	Skipped bool
	Routed  []TrayOutcome
	Failed  []TrayOutcome
}

// SendTrays enruta cada bandeja en secuencia. Un fallo en una bandeja no detiene el lote:
// se registra en Failed y se continúa con la siguiente.
func (uc *UseCase) SendTrays(ctx context.Context, trayIDs []string, actor string) *BatchReport {
	if !uc.inFlight.CompareAndSwap(false, true) {
		uc.log.Info().Int("trays", len(trayIDs)).Msg("envío de bandejas ya en curso; lote omitido")
		return &BatchReport{Skipped: true}
	}
	defer uc.inFlight.Store(false)

	report := &BatchReport{}
	cache := newDirectoryCache(uc.directory)
	for _, id := range trayIDs {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, TrayOutcome{TrayID: id, Err: err})
			continue
		}
		out := uc.send(ctx, cache, id, actor)
		if out.Err != nil {
			uc.log.Warn().Err(out.Err).Str("tray_id", id).Msg("no se pudo enviar la bandeja")
			report.Failed = append(report.Failed, out)
			continue
		}
		report.Routed = append(report.Routed, out)
	}
	uc.log.Info().
		Int("routed", len(report.Routed)).
		Int("failed", len(report.Failed)).
		Msg("lote de bandejas enviado")
	return report
}

func (uc *UseCase) send(ctx context.Context, cache *directoryCache, trayID, actor string) TrayOutcome {
	out := TrayOutcome{TrayID: trayID}
	dest, err := uc.resolve(ctx, cache, trayID, ResolveOptions{})
	if err != nil {
		out.Err = err
		return out
	}
	out.Destination = dest

	var routed entity.Tray
	err = uc.txRunner.Run(ctx, func(r repository.TxRepos) error {
		tray, err := r.Trays.GetByID(ctx, trayID)
		if err != nil {
			return domain.NewPersistenceError("leer bandeja", err)
		}
		if tray == nil {
			return domain.NewNotFound("tray", trayID)
		}
		tray.PipelineID = dest.PipelineID
		tray.StageID = dest.StageID
		tray.Status = entity.TrayStatusRouted
		tray.UpdatedAt = uc.now()
		if err := r.Trays.Update(ctx, tray); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return err
			}
			return domain.NewPersistenceError("actualizar bandeja", err)
		}
		routed = *tray
		return nil
	})
	if err != nil {
		out.Err = err
		return out
	}

	out.FirstEntry = uc.recordEntry(ctx, routed, dest, actor)
	uc.notify(ctx, routed, dest, actor)
	return out
}

type entryPayload struct {
	DepartmentID string `json:"department_id"`
	PipelineID   string `json:"pipeline_id"`
	StageID      string `json:"stage_id"`
}

// recordEntry registra la primera entrada de la bandeja a un departamento. Best-effort.
func (uc *UseCase) recordEntry(ctx context.Context, tray entity.Tray, dest *routing.Destination, actor string) bool {
	if uc.recorder == nil {
		return false
	}
	raw, err := json.Marshal(entryPayload{DepartmentID: dest.DepartmentID, PipelineID: dest.PipelineID, StageID: dest.StageID})
	if err != nil {
		uc.log.Warn().Err(err).Str("tray_id", tray.ID).Msg("payload de entrada a departamento inválido")
		return false
	}
	first, err := uc.recorder.RecordOnce(ctx, &entity.AuditEvent{
		ID:        uuid.NewString(),
		Type:      entity.AuditTypeTray,
		SubjectID: tray.ID,
		TrayID:    tray.ID,
		Kind:      entity.EventDepartmentEntered,
		Message:   fmt.Sprintf("Bandeja %s ingresó a %s (%s)", tray.Label(), dest.DepartmentName, dest.StageName),
		Payload:   raw,
		Actor:     actor,
		CreatedAt: uc.now(),
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("tray_id", tray.ID).Msg("no se pudo registrar la entrada al departamento")
		return false
	}
	return first
}

func (uc *UseCase) notify(ctx context.Context, tray entity.Tray, dest *routing.Destination, actor string) {
	if uc.notifier == nil {
		return
	}
	err := uc.notifier.NotifyTrayRouted(ctx, ports.TrayRoutedNotice{
		Tray:           tray,
		DepartmentID:   dest.DepartmentID,
		DepartmentName: dest.DepartmentName,
		StageName:      dest.StageName,
		Actor:          actor,
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("tray_id", tray.ID).Msg("no se pudo notificar el envío")
	}
}
