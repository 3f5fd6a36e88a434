package allocation

import "github.com/jhoicas/Bandejas-api/internal/domain/entity"

// ItemStore conjunto de trabajo en memoria con las líneas de una o varias bandejas.
// Solo contabilidad en memoria: toda E/S la hacen los llamadores.
// No es seguro para uso concurrente; se crea uno por operación.
type ItemStore struct {
	items map[string]entity.LineItem
	order []string // ids en orden de inserción
}

// NewItemStore construye el store cargando las líneas dadas.
func NewItemStore(items ...entity.LineItem) *ItemStore {
	s := &ItemStore{items: make(map[string]entity.LineItem, len(items))}
	s.Load(items...)
	return s
}

// Load agrega o reemplaza líneas preservando el orden de llegada.
func (s *ItemStore) Load(items ...entity.LineItem) {
	for _, li := range items {
		s.Upsert(li)
	}
}

// Get devuelve copias de las líneas de una bandeja en orden de inserción.
func (s *ItemStore) Get(trayID string) []entity.LineItem {
	var out []entity.LineItem
	for _, id := range s.order {
		if li := s.items[id]; li.TrayID == trayID {
			out = append(out, li.Clone())
		}
	}
	return out
}

// Item devuelve una copia de la línea con ese id.
func (s *ItemStore) Item(id string) (entity.LineItem, bool) {
	li, ok := s.items[id]
	if !ok {
		return entity.LineItem{}, false
	}
	return li.Clone(), true
}

// Upsert inserta o reemplaza una línea. Un reemplazo conserva su posición original.
func (s *ItemStore) Upsert(item entity.LineItem) {
	if _, ok := s.items[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item.Clone()
}

// Remove elimina una línea; devuelve false si no existía.
func (s *ItemStore) Remove(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// FindBySignature devuelve las líneas de la bandeja con la firma (tipo, catálogo, instrumento).
func (s *ItemStore) FindBySignature(trayID string, sig entity.Signature) []entity.LineItem {
	var out []entity.LineItem
	for _, li := range s.Get(trayID) {
		if li.Signature() == sig {
			out = append(out, li)
		}
	}
	return out
}

// Trays devuelve los ids de bandeja presentes, en orden de primera aparición.
func (s *ItemStore) Trays() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range s.order {
		t := s.items[id].TrayID
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Len número de líneas en el store.
func (s *ItemStore) Len() int { return len(s.items) }
