package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	memory "github.com/Kira-pln/inventario-tubetes/internal/infra/persistence/memory"
)

// Service is the inventory engine. It orchestrates batch entry (pulling
// dwell hours from the catalog and computing eligibility), gated withdrawal,
// and the stock and withdrawal-history views, over a persistent store that
// is written synchronously after every mutation.
type Service struct {
	store           PersistentStore
	logger          zerolog.Logger
	metrics         MetricsRecorder
	tracer          *JSONTraceTracer
	nowFn           func() time.Time
	strictTypeNames bool
}

// Option configures the service.
type Option func(*Service)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetricsRecorder attaches an operation metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches a JSON trace tracer recording one span per operation.
func WithTracer(tracer *JSONTraceTracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithClock overrides the wall clock, used by eligibility views and tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFn = now }
}

// WithStrictTypeNames rejects duplicate catalog names on registration. Off
// by default: the permissive behavior lets duplicates coexist and resolves
// lookups to the first entry in insertion order.
func WithStrictTypeNames() Option {
	return func(s *Service) { s.strictTypeNames = true }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zerolog.Nop(),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.nowFn()
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
	if s.tracer != nil {
		s.tracer.Span(op, start, time.Now(), err)
	}
	if err != nil {
		s.logger.Error().Str("op", op).Err(err).Msg("operation failed")
		return
	}
	s.logger.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("operation done")
}

// RegisterTubeType adds a tube type to the catalog.
func (s *Service) RegisterTubeType(ctx context.Context, name, description string, dwellHours int) (TubeType, Result, error) {
	start := time.Now()
	name = strings.TrimSpace(name)

	var created TubeType
	var res Result
	err := func() error {
		if name == "" {
			return ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if dwellHours < 1 {
			return ValidationError{Field: "dwell_hours", Reason: fmt.Sprintf("must be at least 1, got %d", dwellHours)}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if s.strictTypeNames {
				if _, exists := tx.FindTubeType(name); exists {
					return ValidationError{Field: "name", Reason: fmt.Sprintf("type %q already registered", name)}
				}
			}
			var err error
			created, err = tx.CreateTubeType(TubeType{Name: name, Description: description, DwellHours: dwellHours})
			return err
		})
		return err
	}()
	s.observe(ctx, "register_tube_type", start, err)
	return created, res, err
}

// TubeTypes returns the catalog in insertion order.
func (s *Service) TubeTypes(ctx context.Context) ([]TubeType, error) {
	var out []TubeType
	err := s.store.View(ctx, func(view TransactionView) error {
		out = view.ListTubeTypes()
		return nil
	})
	return out, err
}

// RegisterEntry records a batch entering the curing chamber. The eligibility
// instant is computed once here, from the dwell hours of the type at this
// moment; later catalog changes never touch the batch.
func (s *Service) RegisterEntry(ctx context.Context, typeName string, enteredAt time.Time, quantity int) (Batch, Result, error) {
	start := time.Now()

	var created Batch
	var res Result
	err := func() error {
		if quantity < 1 {
			return ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at least 1, got %d", quantity)}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			tubeType, ok := tx.FindTubeType(typeName)
			if !ok {
				return NotFoundError{Entity: EntityTubeType, ID: typeName}
			}
			var err error
			created, err = tx.CreateBatch(Batch{
				TypeName:       tubeType.Name,
				Description:    tubeType.Description,
				QuantityOnHand: quantity,
				EnteredAt:      enteredAt,
				EligibleAt:     enteredAt.Add(time.Duration(tubeType.DwellHours) * time.Hour),
			})
			return err
		})
		return err
	}()
	s.observe(ctx, "register_entry", start, err)
	return created, res, err
}

// RegisterWithdrawal records a (possibly partial) withdrawal against a
// batch. The gate is evaluated against the caller-supplied withdrawal time,
// not the wall clock, so historical entries validate correctly. Repeated
// partial withdrawals are allowed while quantity remains; each call
// overwrites the exit metadata with the latest event.
func (s *Service) RegisterWithdrawal(ctx context.Context, batchID int64, withdrawalTime time.Time, quantity, exitHumidity int) (Batch, Result, error) {
	start := time.Now()

	var updated Batch
	var res Result
	var err error
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		batch, ok := tx.FindBatch(batchID)
		if !ok {
			return NotFoundError{Entity: EntityBatch, ID: fmt.Sprintf("%d", batchID)}
		}
		if withdrawalTime.Before(batch.EligibleAt) {
			return NotEligibleYetError{BatchID: batchID, EligibleAt: batch.EligibleAt, AttemptedAt: withdrawalTime}
		}
		if quantity < 1 || quantity > batch.QuantityOnHand {
			return InvalidQuantityError{Requested: quantity, OnHand: batch.QuantityOnHand}
		}
		if exitHumidity < 0 || exitHumidity > 100 {
			return InvalidHumidityError{Humidity: exitHumidity}
		}
		var err error
		updated, err = tx.UpdateBatch(batchID, func(b *Batch) error {
			b.QuantityOnHand -= quantity
			withdrawn := withdrawalTime
			qty := quantity
			humidity := exitHumidity
			b.WithdrawnAt = &withdrawn
			b.QuantityWithdrawn = &qty
			b.ExitHumidity = &humidity
			return nil
		})
		return err
	})
	s.observe(ctx, "register_withdrawal", start, err)
	return updated, res, err
}

// StockEntry annotates an in-stock batch with its eligibility at the
// observation instant. Eligibility is re-derived on every read; it is never
// cached or stored.
type StockEntry struct {
	Batch    Batch
	Eligible bool
}

// CurrentStock returns all batches without a recorded withdrawal, in entry
// order, annotated against the given instant.
func (s *Service) CurrentStock(ctx context.Context, now time.Time) ([]StockEntry, error) {
	var out []StockEntry
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, batch := range view.ListBatches() {
			if !batch.InStock() {
				continue
			}
			out = append(out, StockEntry{Batch: batch, Eligible: batch.EligibleBy(now)})
		}
		return nil
	})
	return out, err
}

// WithdrawalHistory returns all batches with a recorded withdrawal, in entry
// order. Together with CurrentStock this partitions the ledger exactly.
func (s *Service) WithdrawalHistory(ctx context.Context) ([]Batch, error) {
	var out []Batch
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, batch := range view.ListBatches() {
			if batch.InStock() {
				continue
			}
			out = append(out, batch)
		}
		return nil
	})
	return out, err
}

// Batch retrieves a single ledger record.
func (s *Service) Batch(ctx context.Context, id int64) (Batch, error) {
	var out Batch
	err := s.store.View(ctx, func(view TransactionView) error {
		batch, ok := view.FindBatch(id)
		if !ok {
			return NotFoundError{Entity: EntityBatch, ID: fmt.Sprintf("%d", id)}
		}
		out = batch
		return nil
	})
	return out, err
}
