// Package memory provides the in-memory implementation of the persistence
// store. It is the canonical transaction engine: durable drivers wrap it and
// snapshot its state after every successful transaction.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// TubeType aliases domain.TubeType for in-memory persistence operations.
	TubeType = domain.TubeType
	// Batch aliases domain.Batch.
	Batch = domain.Batch
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// memoryState keeps the catalog in insertion order (duplicate names are
// permitted; first match wins) and the ledger in entry order.
type memoryState struct {
	types   []TubeType
	batches []Batch
	index   map[int64]int // batch ID -> position in batches
	seq     int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	TubeTypes []TubeType `json:"tube_types"`
	Batches   []Batch    `json:"batches"`
	Sequence  int64      `json:"sequence"`
}

func newMemoryState() memoryState {
	return memoryState{index: make(map[int64]int)}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		types:   append([]TubeType(nil), s.types...),
		batches: make([]Batch, 0, len(s.batches)),
		index:   make(map[int64]int, len(s.index)),
		seq:     s.seq,
	}
	for i, b := range s.batches {
		cloned.batches = append(cloned.batches, b.Clone())
		cloned.index[b.ID] = i
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		TubeTypes: append([]TubeType(nil), state.types...),
		Batches:   make([]Batch, 0, len(state.batches)),
		Sequence:  state.seq,
	}
	for _, b := range state.batches {
		snap.Batches = append(snap.Batches, b.Clone())
	}
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	state.types = append(state.types, snap.TubeTypes...)
	for _, b := range snap.Batches {
		state.index[b.ID] = len(state.batches)
		state.batches = append(state.batches, b.Clone())
	}
	state.seq = snap.Sequence
	return state
}

// migrateSnapshot normalizes snapshots written by older states: nil slices
// become empty and the sequence is raised to cover every ledger ID so IDs
// are never reused after a reload.
func migrateSnapshot(snap Snapshot) Snapshot {
	if snap.TubeTypes == nil {
		snap.TubeTypes = []TubeType{}
	}
	if snap.Batches == nil {
		snap.Batches = []Batch{}
	}
	for _, b := range snap.Batches {
		if b.ID > snap.Sequence {
			snap.Sequence = b.ID
		}
	}
	return snap
}

// Store provides an in-memory transactional store for the inventory domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snap))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListTubeTypes returns the catalog in insertion order.
func (v transactionView) ListTubeTypes() []TubeType {
	return append([]TubeType(nil), v.state.types...)
}

// ListBatches returns the ledger in entry order.
func (v transactionView) ListBatches() []Batch {
	out := make([]Batch, 0, len(v.state.batches))
	for _, b := range v.state.batches {
		out = append(out, b.Clone())
	}
	return out
}

// FindTubeType retrieves the first catalog entry with the given name.
func (v transactionView) FindTubeType(name string) (TubeType, bool) {
	return findType(v.state, name)
}

// FindBatch retrieves a batch by ledger ID.
func (v transactionView) FindBatch(id int64) (Batch, bool) {
	return findBatch(v.state, id)
}

func findType(state *memoryState, name string) (TubeType, bool) {
	for _, t := range state.types {
		if t.Name == name {
			return t, true
		}
	}
	return TubeType{}, false
}

func findBatch(state *memoryState, id int64) (Batch, bool) {
	pos, ok := state.index[id]
	if !ok {
		return Batch{}, false
	}
	return state.batches[pos].Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetTubeType retrieves the first catalog entry with the given name.
func (s *Store) GetTubeType(name string) (TubeType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findType(&s.state, name)
}

// ListTubeTypes returns the catalog in insertion order.
func (s *Store) ListTubeTypes() []TubeType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TubeType(nil), s.state.types...)
}

// GetBatch retrieves a batch by ledger ID.
func (s *Store) GetBatch(id int64) (Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findBatch(&s.state, id)
}

// ListBatches returns the ledger in entry order.
func (s *Store) ListBatches() []Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Batch, 0, len(s.state.batches))
	for _, b := range s.state.batches {
		out = append(out, b.Clone())
	}
	return out
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindTubeType exposes catalog lookup within the transaction scope.
func (tx *transaction) FindTubeType(name string) (TubeType, bool) {
	return findType(&tx.state, name)
}

// FindBatch exposes ledger lookup within the transaction scope.
func (tx *transaction) FindBatch(id int64) (Batch, bool) {
	return findBatch(&tx.state, id)
}

// CreateTubeType appends a catalog entry. Duplicate names coexist; lookups
// resolve to the first entry in insertion order.
func (tx *transaction) CreateTubeType(t TubeType) (TubeType, error) {
	t.CreatedAt = tx.now
	tx.state.types = append(tx.state.types, t)
	tx.recordChange(Change{Entity: domain.EntityTubeType, Action: domain.ActionCreate, After: t})
	return t, nil
}

// CreateBatch appends a ledger record, assigning the next sequence ID.
func (tx *transaction) CreateBatch(b Batch) (Batch, error) {
	if b.ID != 0 {
		if _, exists := tx.state.index[b.ID]; exists {
			return Batch{}, fmt.Errorf("batch %d already exists", b.ID)
		}
		if b.ID > tx.state.seq {
			tx.state.seq = b.ID
		}
	} else {
		tx.state.seq++
		b.ID = tx.state.seq
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.index[b.ID] = len(tx.state.batches)
	tx.state.batches = append(tx.state.batches, b.Clone())
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionCreate, After: b.Clone()})
	return b.Clone(), nil
}

// UpdateBatch mutates a ledger record in place using the provided mutator.
func (tx *transaction) UpdateBatch(id int64, mutator func(*Batch) error) (Batch, error) {
	pos, ok := tx.state.index[id]
	if !ok {
		return Batch{}, domain.NotFoundError{Entity: domain.EntityBatch, ID: fmt.Sprintf("%d", id)}
	}
	current := tx.state.batches[pos].Clone()
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return Batch{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.batches[pos] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}
