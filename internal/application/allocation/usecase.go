package allocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/allocation"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
	"github.com/jhoicas/Bandejas-api/pkg/logger"
)

// UseCase división y consolidación de líneas con persistencia transaccional.
type UseCase struct {
	txRunner   ports.TxRunner
	orders     repository.ServiceOrderRepository
	reconciler Reconciler
	splitter   *allocation.SplitAllocator
	merger     *allocation.Consolidator
	log        *logger.Logger
	now        func() time.Time
}

// NewUseCase construye el caso de uso. opts se pasan al asignador y al consolidador (ids, reloj).
func NewUseCase(
	txRunner ports.TxRunner,
	orders repository.ServiceOrderRepository,
	reconciler Reconciler,
	policy allocation.IdentityPolicy,
	log *logger.Logger,
	opts ...allocation.Option,
) *UseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &UseCase{
		txRunner:   txRunner,
		orders:     orders,
		reconciler: reconciler,
		splitter:   allocation.NewSplitAllocator(policy, opts...),
		merger:     allocation.NewConsolidator(opts...),
		log:        log.Component("allocation"),
		now:        time.Now,
	}
}

// SplitItemInput entrada para dividir una línea.
// ExpectedQuantity es la cantidad que vio el cliente; nil omite la verificación.
type SplitItemInput struct {
	ItemID           string
	ExpectedQuantity *int
	Requests         []allocation.SplitRequest
	Actor            string
}

// SplitItemOutput resultado persistido de la división.
type SplitItemOutput struct {
	Result        *allocation.SplitResult
	DeletedTrayID string   // bandeja origen eliminada por quedar vacía
	Trays         []string // bandejas tocadas
}

// SplitItem bloquea la línea, verifica la cantidad esperada, reparte y persiste en una sola transacción.
// Si un traslado a otra bandeja deja vacía la bandeja origen y esta no tiene adjuntos, se elimina.
func (uc *UseCase) SplitItem(ctx context.Context, in SplitItemInput) (*SplitItemOutput, error) {
	if in.ItemID == "" {
		return nil, domain.NewValidationError(domain.KindInvalidAssignments, "", "item_id es obligatorio")
	}
	out := &SplitItemOutput{}
	err := uc.txRunner.Run(ctx, func(r repository.TxRepos) error {
		src, err := r.Items.GetForUpdate(ctx, in.ItemID)
		if err != nil {
			return readErr("leer línea", err)
		}
		if in.ExpectedQuantity != nil && *in.ExpectedQuantity != src.Quantity {
			return &domain.ConflictError{SubjectID: src.ID, Expected: *in.ExpectedQuantity, Actual: src.Quantity}
		}
		srcTray, err := r.Trays.GetByID(ctx, src.TrayID)
		if err != nil {
			return domain.NewPersistenceError("leer bandeja", err)
		}
		if srcTray == nil {
			return domain.NewNotFound("tray", src.TrayID)
		}

		touched := []string{src.TrayID}
		movesTray := false
		for _, req := range in.Requests {
			if req.Destination.Type != entity.DestinationTray || req.Quantity <= 0 {
				continue
			}
			dst, err := r.Trays.GetByID(ctx, req.Destination.ID)
			if err != nil {
				return domain.NewPersistenceError("leer bandeja destino", err)
			}
			if dst == nil {
				return domain.NewNotFound("tray", req.Destination.ID)
			}
			movesTray = true
			if !slices.Contains(touched, dst.ID) {
				touched = append(touched, dst.ID)
			}
		}

		current, err := r.Items.ListByTray(ctx, src.TrayID)
		if err != nil {
			return domain.NewPersistenceError("listar líneas", err)
		}
		store := allocation.NewItemStore(current...)
		res, err := uc.splitter.Split(store, src.ID, in.Requests)
		if err != nil {
			return err
		}

		for i := range res.Created {
			if err := r.Items.Create(ctx, &res.Created[i]); err != nil {
				return domain.NewPersistenceError("crear línea", err)
			}
		}
		if res.Updated != nil {
			if err := r.Items.Update(ctx, res.Updated, src.Quantity); err != nil {
				return writeErr("actualizar línea", err)
			}
		}
		if res.DeletedID != "" {
			if err := r.Items.Delete(ctx, res.DeletedID); err != nil {
				return writeErr("eliminar línea", err)
			}
			if movesTray && srcTray.AttachmentCount == 0 {
				left, err := r.Items.CountByTray(ctx, srcTray.ID)
				if err != nil {
					return domain.NewPersistenceError("contar líneas", err)
				}
				if left == 0 {
					if err := r.Trays.Delete(ctx, srcTray.ID); err != nil {
						return domain.NewPersistenceError("eliminar bandeja vacía", err)
					}
					out.DeletedTrayID = srcTray.ID
				}
			}
		}
		out.Result = res
		out.Trays = touched
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("item_id", in.ItemID).
		Int("created", len(out.Result.Created)).
		Str("deleted_tray_id", out.DeletedTrayID).
		Msg("línea dividida")
	uc.reconcile(ctx, out.Trays, in.Actor)
	return out, nil
}

// MergeOutput filas absorbidas y líneas cuya cantidad quedó distinta de sus seriales.
type MergeOutput struct {
	Merged     int
	SerialGaps []allocation.SerialGap
}

// MergeItems consolida las líneas con la misma firma de la bandeja y técnico en una transacción.
func (uc *UseCase) MergeItems(ctx context.Context, trayID, technicianID, actor string) (*MergeOutput, error) {
	var res *allocation.MergeResult
	err := uc.txRunner.Run(ctx, func(r repository.TxRepos) error {
		tray, err := r.Trays.GetByID(ctx, trayID)
		if err != nil {
			return domain.NewPersistenceError("leer bandeja", err)
		}
		if tray == nil {
			return domain.NewNotFound("tray", trayID)
		}
		current, err := r.Items.ListByTray(ctx, trayID)
		if err != nil {
			return domain.NewPersistenceError("listar líneas", err)
		}
		before := make(map[string]int, len(current))
		for _, li := range current {
			before[li.ID] = li.Quantity
		}

		store := allocation.NewItemStore(current...)
		res = uc.merger.Merge(store, trayID, technicianID)
		for i := range res.Consolidated {
			li := &res.Consolidated[i]
			if err := r.Items.Update(ctx, li, before[li.ID]); err != nil {
				return writeErr("actualizar línea consolidada", err)
			}
		}
		for _, id := range res.Removed {
			if err := r.Items.Delete(ctx, id); err != nil {
				return writeErr("eliminar línea absorbida", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, g := range res.SerialGaps {
		uc.log.Warn().Str("tray_id", trayID).Str("item_id", g.ItemID).
			Int("quantity", g.Quantity).Int("serials", g.SerialCount).
			Msg("consolidación con seriales repetidos: la cantidad no coincide con los seriales")
	}
	if n := res.MergedAway(); n > 0 {
		uc.recordMerge(ctx, trayID, technicianID, actor, res)
	}
	uc.reconcile(ctx, []string{trayID}, actor)
	return &MergeOutput{Merged: res.MergedAway(), SerialGaps: res.SerialGaps}, nil
}

type mergePayload struct {
	TechnicianID string                 `json:"technician_id,omitempty"`
	Survivors    []string               `json:"survivors"`
	Removed      []string               `json:"removed"`
	SerialGaps   []allocation.SerialGap `json:"serial_gaps,omitempty"`
}

func (uc *UseCase) recordMerge(ctx context.Context, trayID, technicianID, actor string, res *allocation.MergeResult) {
	if uc.reconciler == nil {
		return
	}
	p := mergePayload{TechnicianID: technicianID, Removed: res.Removed, SerialGaps: res.SerialGaps}
	for _, li := range res.Consolidated {
		p.Survivors = append(p.Survivors, li.ID)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		uc.log.Warn().Err(err).Str("tray_id", trayID).Msg("payload de consolidación inválido")
		return
	}
	uc.reconciler.Record(ctx, &entity.AuditEvent{
		ID:        uuid.NewString(),
		Type:      entity.AuditTypeTray,
		SubjectID: trayID,
		TrayID:    trayID,
		Kind:      entity.EventItemsMerged,
		Message:   fmt.Sprintf("%d líneas consolidadas en %d", len(res.Removed)+len(res.Consolidated), len(res.Consolidated)),
		Payload:   raw,
		Actor:     actor,
		CreatedAt: uc.now(),
	})
}

// EnsurePlaceholder devuelve la bandeja sin número de la orden, creándola si no existe.
// created indica si se creó en esta llamada.
func (uc *UseCase) EnsurePlaceholder(ctx context.Context, serviceOrderID string) (tray *entity.Tray, created bool, err error) {
	order, err := uc.orders.GetByID(ctx, serviceOrderID)
	if err != nil {
		return nil, false, domain.NewPersistenceError("leer orden de servicio", err)
	}
	if order == nil {
		return nil, false, domain.NewNotFound("service_order", serviceOrderID)
	}

	err = uc.txRunner.Run(ctx, func(r repository.TxRepos) error {
		existing, err := r.Trays.FindPlaceholder(ctx, serviceOrderID)
		if err != nil {
			return domain.NewPersistenceError("buscar bandeja sin asignar", err)
		}
		if existing != nil {
			tray = existing
			return nil
		}
		now := uc.now()
		t := &entity.Tray{
			ID:             uuid.NewString(),
			Status:         entity.TrayStatusNew,
			ServiceOrderID: serviceOrderID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := r.Trays.Create(ctx, t); err != nil {
			return err
		}
		tray, created = t, true
		return nil
	})
	if errors.Is(err, domain.ErrDuplicate) {
		// Otra sesión la creó en paralelo (índice único parcial): se devuelve la existente.
		existing, ferr := uc.findPlaceholder(ctx, serviceOrderID)
		return existing, false, ferr
	}
	if err != nil {
		return nil, false, writeErr("crear bandeja sin asignar", err)
	}
	return tray, created, nil
}

func (uc *UseCase) findPlaceholder(ctx context.Context, serviceOrderID string) (*entity.Tray, error) {
	var tray *entity.Tray
	err := uc.txRunner.Run(ctx, func(r repository.TxRepos) error {
		t, err := r.Trays.FindPlaceholder(ctx, serviceOrderID)
		if err != nil {
			return domain.NewPersistenceError("buscar bandeja sin asignar", err)
		}
		if t == nil {
			return domain.NewNotFound("tray", serviceOrderID)
		}
		tray = t
		return nil
	})
	return tray, err
}

// reconcile registra auditoría de cada bandeja; los fallos nunca llegan al llamador.
func (uc *UseCase) reconcile(ctx context.Context, trayIDs []string, actor string) {
	if uc.reconciler == nil {
		return
	}
	for _, id := range trayIDs {
		if _, err := uc.reconciler.DiffAndLog(ctx, id, actor); err != nil {
			uc.log.Warn().Err(err).Str("tray_id", id).Msg("conciliación de auditoría fallida")
		}
	}
}

// readErr deja pasar los errores de dominio y envuelve el resto como persistencia.
func readErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}

// writeErr deja pasar conflictos y ausencias; el resto es persistencia.
func writeErr(op string, err error) error {
	if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}
