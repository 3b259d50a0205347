package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateTubeType(TubeType) (TubeType, error)
	CreateBatch(Batch) (Batch, error)
	UpdateBatch(id int64, mutator func(*Batch) error) (Batch, error)
	FindTubeType(name string) (TubeType, bool)
	FindBatch(id int64) (Batch, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// reports.
type TransactionView interface {
	ListTubeTypes() []TubeType
	ListBatches() []Batch
	FindTubeType(name string) (TubeType, bool)
	FindBatch(id int64) (Batch, bool)
}

// PersistentStore is a minimal abstraction over durable backends. Every
// successful transaction is persisted synchronously before control returns
// to the caller.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTubeType(name string) (TubeType, bool)
	ListTubeTypes() []TubeType
	GetBatch(id int64) (Batch, bool)
	ListBatches() []Batch
}
