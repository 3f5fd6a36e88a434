package allocation

import "github.com/jhoicas/Bandejas-api/internal/domain/entity"

// MergeResult filas consolidadas y filas absorbidas.
type MergeResult struct {
	Consolidated []entity.LineItem
	Removed      []string
	// SerialGaps sobrevivientes cuyos seriales repetidos se unieron: la cantidad sumada ya no
	// coincide con el número de seriales y hay que corregir la identidad antes de dividirlos.
	SerialGaps []SerialGap
}

// SerialGap diferencia entre cantidad y seriales de una línea consolidada.
type SerialGap struct {
	ItemID            string `json:"item_id"`
	Quantity          int    `json:"quantity"`
	SerialCount       int    `json:"serial_count"`
	DuplicatesDropped int    `json:"duplicates_dropped"`
}

// MergedAway número de filas eliminadas por la consolidación.
func (r *MergeResult) MergedAway() int { return len(r.Removed) }

// Consolidator operación inversa de la división: une líneas con la misma firma.
type Consolidator struct {
	opts options
}

// NewConsolidator construye el consolidador.
func NewConsolidator(opts ...Option) *Consolidator {
	return &Consolidator{opts: buildOptions(opts)}
}

// Merge agrupa por firma las líneas de la bandeja y técnico (vacío = sin técnico).
// Cada grupo con más de un miembro queda en la primera fila: cantidades sumadas,
// seriales unidos sin duplicados, urgencia si alguna lo era.
// El store solo se modifica al final, con todos los grupos ya calculados.
func (c *Consolidator) Merge(store *ItemStore, trayID, technicianID string) *MergeResult {
	groups := make(map[entity.Signature][]entity.LineItem)
	var order []entity.Signature
	for _, li := range store.Get(trayID) {
		if li.TechnicianID != technicianID {
			continue
		}
		sig := li.Signature()
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], li)
	}

	res := &MergeResult{}
	now := c.opts.now()
	for _, sig := range order {
		members := groups[sig]
		if len(members) < 2 {
			continue
		}
		survivor := members[0]
		serials := survivor.SerialCount()
		lists := make([][]entity.IdentityGroup, 0, len(members))
		lists = append(lists, survivor.Identity)
		for _, m := range members[1:] {
			serials += m.SerialCount()
			survivor.Quantity += m.Quantity
			survivor.UnrepairableQuantity += m.UnrepairableQuantity
			survivor.Urgent = survivor.Urgent || m.Urgent
			lists = append(lists, m.Identity)
			res.Removed = append(res.Removed, m.ID)
		}
		survivor.Identity = unionIdentity(lists...)
		survivor.UpdatedAt = now
		if dropped := serials - survivor.SerialCount(); dropped > 0 {
			res.SerialGaps = append(res.SerialGaps, SerialGap{
				ItemID:            survivor.ID,
				Quantity:          survivor.Quantity,
				SerialCount:       survivor.SerialCount(),
				DuplicatesDropped: dropped,
			})
		}
		res.Consolidated = append(res.Consolidated, survivor)
	}

	for _, id := range res.Removed {
		store.Remove(id)
	}
	for _, li := range res.Consolidated {
		store.Upsert(li)
	}
	return res
}
