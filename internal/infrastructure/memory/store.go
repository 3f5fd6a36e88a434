package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
)

var _ ports.TxRunner = (*Store)(nil)

// state todo el contenido del almacén; Run trabaja sobre una copia y la publica al confirmar.
type state struct {
	trays     map[string]entity.Tray
	orders    map[string]entity.ServiceOrder
	items     map[string]entity.LineItem
	itemOrder []string
	events    []entity.AuditEvent
	snapshots map[string]entity.Snapshot

	departments []entity.Department
	pipelines   []entity.Pipeline
	stages      []entity.Stage
	instruments map[string]entity.Instrument
}

func newState() *state {
	return &state{
		trays:       make(map[string]entity.Tray),
		orders:      make(map[string]entity.ServiceOrder),
		items:       make(map[string]entity.LineItem),
		snapshots:   make(map[string]entity.Snapshot),
		instruments: make(map[string]entity.Instrument),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.trays {
		c.trays[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v.Clone()
	}
	c.itemOrder = append([]string(nil), st.itemOrder...)
	c.events = append([]entity.AuditEvent(nil), st.events...)
	for k, v := range st.snapshots {
		c.snapshots[k] = v
	}
	// El directorio es de solo lectura: se comparte.
	c.departments = st.departments
	c.pipelines = st.pipelines
	c.stages = st.stages
	c.instruments = st.instruments
	return c
}

// fault error inyectado en una operación a partir de la llamada número after+1.
type fault struct {
	after int
	calls int
	err   error
}

// Store almacén en memoria que implementa todos los repositorios y un TxRunner atómico.
// Pensado para tests y para ejecutar la API sin base de datos (STORE_DRIVER=memory).
type Store struct {
	mu sync.Mutex
	st *state

	fmu    sync.Mutex
	faults map[string]*fault
}

// NewStore construye un almacén vacío.
func NewStore() *Store {
	return &Store{st: newState(), faults: make(map[string]*fault)}
}

// Run ejecuta fn sobre una copia del estado; solo si fn termina sin error la copia se publica.
func (s *Store) Run(ctx context.Context, fn func(repos repository.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.st.clone()
	if err := fn(s.repos(tx)); err != nil {
		return err
	}
	s.st = tx
	return nil
}

// Repos repositorios fuera de transacción (cada llamada toma el lock del almacén).
func (s *Store) Repos() repository.TxRepos { return s.repos(nil) }

func (s *Store) repos(tx *state) repository.TxRepos {
	return repository.TxRepos{
		Trays:     &TrayRepo{db: s, tx: tx},
		Items:     &LineItemRepo{db: s, tx: tx},
		Events:    &AuditEventRepo{db: s, tx: tx},
		Snapshots: &SnapshotRepo{db: s, tx: tx},
	}
}

// Trays, Items, Events, Snapshots, Orders y Directory devuelven repositorios sin transacción.
func (s *Store) Trays() *TrayRepo          { return &TrayRepo{db: s} }
func (s *Store) Items() *LineItemRepo      { return &LineItemRepo{db: s} }
func (s *Store) Events() *AuditEventRepo   { return &AuditEventRepo{db: s} }
func (s *Store) Snapshots() *SnapshotRepo  { return &SnapshotRepo{db: s} }
func (s *Store) Orders() *ServiceOrderRepo { return &ServiceOrderRepo{db: s} }
func (s *Store) Directory() *DirectoryRepo { return &DirectoryRepo{db: s} }

// view ejecuta fn sobre el estado de la tx o, sin tx, sobre el estado publicado con lock.
func (s *Store) view(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// InjectFault hace fallar la operación op (p. ej. "items.create") a partir de la llamada after+1.
func (s *Store) InjectFault(op string, after int, err error) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	s.faults[op] = &fault{after: after, err: err}
}

// ClearFaults elimina los fallos inyectados.
func (s *Store) ClearFaults() {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	s.faults = make(map[string]*fault)
}

func (s *Store) check(op string) error {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	f.calls++
	if f.calls > f.after {
		return fmt.Errorf("%s: %w", op, f.err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Carga e inspección (tests y modo demo)
// ──────────────────────────────────────────────────────────────────────────────

// PutTray inserta o reemplaza una bandeja.
func (s *Store) PutTray(t entity.Tray) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.trays[t.ID] = t
}

// PutOrder inserta o reemplaza una orden de servicio.
func (s *Store) PutOrder(o entity.ServiceOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.orders[o.ID] = o
}

// PutItems inserta o reemplaza líneas.
func (s *Store) PutItems(items ...entity.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, li := range items {
		s.st.putItem(li)
	}
}

// PutDirectory reemplaza el directorio completo.
func (s *Store) PutDirectory(deps []entity.Department, pipes []entity.Pipeline, stages []entity.Stage, instruments []entity.Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.departments = append([]entity.Department(nil), deps...)
	s.st.pipelines = append([]entity.Pipeline(nil), pipes...)
	s.st.stages = append([]entity.Stage(nil), stages...)
	s.st.instruments = make(map[string]entity.Instrument, len(instruments))
	for _, in := range instruments {
		s.st.instruments[in.ID] = in
	}
}

// AllEvents copia de todos los eventos en orden de escritura.
func (s *Store) AllEvents() []entity.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.AuditEvent(nil), s.st.events...)
}

// AllTrays copia de todas las bandejas.
func (s *Store) AllTrays() []entity.Tray {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Tray, 0, len(s.st.trays))
	for _, t := range s.st.trays {
		out = append(out, t)
	}
	return out
}

// AllItems copia de todas las líneas en orden de creación.
func (s *Store) AllItems() []entity.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.LineItem, 0, len(s.st.items))
	for _, id := range s.st.itemOrder {
		out = append(out, s.st.items[id].Clone())
	}
	return out
}

func (st *state) putItem(li entity.LineItem) {
	if _, ok := st.items[li.ID]; !ok {
		st.itemOrder = append(st.itemOrder, li.ID)
	}
	st.items[li.ID] = li.Clone()
}

func (st *state) deleteItem(id string) bool {
	if _, ok := st.items[id]; !ok {
		return false
	}
	delete(st.items, id)
	for i, oid := range st.itemOrder {
		if oid == id {
			st.itemOrder = append(st.itemOrder[:i], st.itemOrder[i+1:]...)
			break
		}
	}
	return true
}
