package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

var entryTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)
	if _, _, err := svc.RegisterTubeType(context.Background(), "PVC-25", "tubete pvc 25mm", 2); err != nil {
		t.Fatalf("register type: %v", err)
	}
	return svc
}

func mustEntry(t *testing.T, svc *Service, typeName string, at time.Time, qty int) Batch {
	t.Helper()
	batch, _, err := svc.RegisterEntry(context.Background(), typeName, at, qty)
	if err != nil {
		t.Fatalf("register entry: %v", err)
	}
	return batch
}

func TestRegisterTubeTypeValidation(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine())
	ctx := context.Background()

	_, _, err := svc.RegisterTubeType(ctx, "   ", "x", 2)
	var validation domain.ValidationError
	if !errors.As(err, &validation) || validation.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}

	_, _, err = svc.RegisterTubeType(ctx, "PVC-25", "x", 0)
	if !errors.As(err, &validation) || validation.Field != "dwell_hours" {
		t.Fatalf("expected dwell_hours validation error, got %v", err)
	}

	created, _, err := svc.RegisterTubeType(ctx, "  PVC-25  ", "x", 2)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Name != "PVC-25" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
}

func TestDuplicateTypeNamesPermissiveByDefault(t *testing.T) {
	svc := newTestService(t)
	if _, _, err := svc.RegisterTubeType(context.Background(), "PVC-25", "second", 8); err != nil {
		t.Fatalf("duplicate registration must pass by default: %v", err)
	}
	types, err := svc.TubeTypes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("expected both entries kept, got %d", len(types))
	}
	// Entries resolve against the first entry, so dwell stays at 2 hours.
	batch := mustEntry(t, svc, "PVC-25", entryTime, 1)
	if !batch.EligibleAt.Equal(entryTime.Add(2 * time.Hour)) {
		t.Fatalf("lookup must resolve to first entry, eligible at %s", batch.EligibleAt)
	}
}

func TestStrictTypeNamesRejectDuplicates(t *testing.T) {
	svc := newTestService(t, WithStrictTypeNames())
	_, _, err := svc.RegisterTubeType(context.Background(), "PVC-25", "second", 8)
	var validation domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected duplicate rejection in strict mode, got %v", err)
	}
}

func TestRegisterEntryComputesEligibility(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)
	if batch.ID != 1 {
		t.Fatalf("expected first ledger ID, got %d", batch.ID)
	}
	if !batch.EligibleAt.Equal(entryTime.Add(2 * time.Hour)) {
		t.Fatalf("eligibility must be entry + dwell, got %s", batch.EligibleAt)
	}
	if batch.Description != "tubete pvc 25mm" {
		t.Fatalf("description must be snapshotted from the catalog, got %q", batch.Description)
	}
}

func TestRegisterEntryEligibilityFrozenAgainstCatalogChanges(t *testing.T) {
	svc := newTestService(t, WithStrictTypeNames())
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)

	// A new type under a different name must not disturb existing batches.
	if _, _, err := svc.RegisterTubeType(context.Background(), "PVC-40", "larger", 48); err != nil {
		t.Fatalf("register second type: %v", err)
	}
	got, err := svc.Batch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !got.EligibleAt.Equal(entryTime.Add(2 * time.Hour)) {
		t.Fatalf("eligibility drifted: %s", got.EligibleAt)
	}
}

func TestRegisterEntryValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.RegisterEntry(ctx, "PVC-25", entryTime, 0)
	var validation domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected quantity validation error, got %v", err)
	}

	_, _, err = svc.RegisterEntry(ctx, "UNKNOWN", entryTime, 5)
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) || notFound.Entity != domain.EntityTubeType {
		t.Fatalf("expected tube type NotFoundError, got %v", err)
	}
}

func TestWithdrawalBeforeEligibilityFails(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)

	_, _, err := svc.RegisterWithdrawal(context.Background(), batch.ID, entryTime.Add(time.Hour), 3, 12)
	var notYet domain.NotEligibleYetError
	if !errors.As(err, &notYet) {
		t.Fatalf("expected NotEligibleYetError, got %v", err)
	}
	if !notYet.EligibleAt.Equal(entryTime.Add(2 * time.Hour)) {
		t.Fatalf("unexpected eligibility in error: %s", notYet.EligibleAt)
	}

	got, err := svc.Batch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.QuantityOnHand != 10 || got.WithdrawnAt != nil {
		t.Fatalf("failed withdrawal must not mutate the batch: %+v", got)
	}
}

func TestWithdrawalAtExactEligibilitySucceeds(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)
	if _, _, err := svc.RegisterWithdrawal(context.Background(), batch.ID, entryTime.Add(2*time.Hour), 1, 10); err != nil {
		t.Fatalf("boundary withdrawal must pass: %v", err)
	}
}

func TestSuccessfulWithdrawalMovesBatchToHistory(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)
	withdrawAt := entryTime.Add(3 * time.Hour)

	updated, _, err := svc.RegisterWithdrawal(context.Background(), batch.ID, withdrawAt, 3, 12)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if updated.QuantityOnHand != 7 {
		t.Fatalf("expected 7 on hand, got %d", updated.QuantityOnHand)
	}
	if updated.WithdrawnAt == nil || !updated.WithdrawnAt.Equal(withdrawAt) {
		t.Fatalf("withdrawal timestamp not recorded: %+v", updated.WithdrawnAt)
	}
	if updated.QuantityWithdrawn == nil || *updated.QuantityWithdrawn != 3 {
		t.Fatalf("withdrawn quantity not recorded: %+v", updated.QuantityWithdrawn)
	}
	if updated.ExitHumidity == nil || *updated.ExitHumidity != 12 {
		t.Fatalf("exit humidity not recorded: %+v", updated.ExitHumidity)
	}

	stock, err := svc.CurrentStock(context.Background(), withdrawAt)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if len(stock) != 0 {
		t.Fatalf("withdrawn batch must leave stock, got %d entries", len(stock))
	}
	history, err := svc.WithdrawalHistory(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != batch.ID || history[0].QuantityOnHand != 7 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRepeatedWithdrawalOverwritesExitMetadata(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)
	ctx := context.Background()

	if _, _, err := svc.RegisterWithdrawal(ctx, batch.ID, entryTime.Add(3*time.Hour), 3, 12); err != nil {
		t.Fatalf("first withdrawal: %v", err)
	}
	second := entryTime.Add(5 * time.Hour)
	updated, _, err := svc.RegisterWithdrawal(ctx, batch.ID, second, 4, 9)
	if err != nil {
		t.Fatalf("second withdrawal: %v", err)
	}
	// Quantity decrements cumulatively; exit metadata reflects only the
	// latest event.
	if updated.QuantityOnHand != 3 {
		t.Fatalf("expected 3 on hand after 3+4 withdrawn, got %d", updated.QuantityOnHand)
	}
	if *updated.QuantityWithdrawn != 4 || *updated.ExitHumidity != 9 || !updated.WithdrawnAt.Equal(second) {
		t.Fatalf("exit metadata must be overwritten by the latest event: %+v", updated)
	}
}

func TestWithdrawalQuantityBounds(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)
	at := entryTime.Add(3 * time.Hour)
	ctx := context.Background()

	for _, qty := range []int{0, -1, 11} {
		_, _, err := svc.RegisterWithdrawal(ctx, batch.ID, at, qty, 12)
		var invalid domain.InvalidQuantityError
		if !errors.As(err, &invalid) {
			t.Fatalf("quantity %d: expected InvalidQuantityError, got %v", qty, err)
		}
		if invalid.OnHand != 10 {
			t.Fatalf("quantity %d: error must report on-hand 10, got %d", qty, invalid.OnHand)
		}
	}
}

func TestWithdrawalHumidityBounds(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)
	at := entryTime.Add(3 * time.Hour)
	ctx := context.Background()

	for _, hum := range []int{-1, 101} {
		_, _, err := svc.RegisterWithdrawal(ctx, batch.ID, at, 3, hum)
		var invalid domain.InvalidHumidityError
		if !errors.As(err, &invalid) {
			t.Fatalf("humidity %d: expected InvalidHumidityError, got %v", hum, err)
		}
	}
	if _, _, err := svc.RegisterWithdrawal(ctx, batch.ID, at, 3, 0); err != nil {
		t.Fatalf("humidity 0 must be accepted: %v", err)
	}
	if _, _, err := svc.RegisterWithdrawal(ctx, batch.ID, at, 3, 100); err != nil {
		t.Fatalf("humidity 100 must be accepted: %v", err)
	}
}

func TestWithdrawalUnknownBatch(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.RegisterWithdrawal(context.Background(), 42, entryTime.Add(3*time.Hour), 1, 10)
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) || notFound.Entity != domain.EntityBatch {
		t.Fatalf("expected batch NotFoundError, got %v", err)
	}
}

func TestPreconditionOrderEligibilityBeforeQuantity(t *testing.T) {
	svc := newTestService(t)
	batch := mustEntry(t, svc, "PVC-25", entryTime, 10)
	// Both preconditions violated: the eligibility gate must win.
	_, _, err := svc.RegisterWithdrawal(context.Background(), batch.ID, entryTime.Add(time.Hour), 99, 200)
	var notYet domain.NotEligibleYetError
	if !errors.As(err, &notYet) {
		t.Fatalf("expected eligibility error to take precedence, got %v", err)
	}
}

func TestStockAndHistoryPartitionLedger(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	first := mustEntry(t, svc, "PVC-25", entryTime, 10)
	second := mustEntry(t, svc, "PVC-25", entryTime.Add(time.Hour), 5)

	at := entryTime.Add(4 * time.Hour)
	if _, _, err := svc.RegisterWithdrawal(ctx, first.ID, at, 10, 15); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	stock, err := svc.CurrentStock(ctx, at)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	history, err := svc.WithdrawalHistory(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(stock) != 1 || stock[0].Batch.ID != second.ID {
		t.Fatalf("unexpected stock: %+v", stock)
	}
	if !stock[0].Eligible {
		t.Fatal("second batch should be eligible 3h after its entry")
	}
	if len(history) != 1 || history[0].ID != first.ID {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestCurrentStockEligibilityIsDerivedPerInstant(t *testing.T) {
	svc := newTestService(t)
	mustEntry(t, svc, "PVC-25", entryTime, 10)
	ctx := context.Background()

	early, err := svc.CurrentStock(ctx, entryTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if early[0].Eligible {
		t.Fatal("must not be eligible one hour in")
	}
	late, err := svc.CurrentStock(ctx, entryTime.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if !late[0].Eligible {
		t.Fatal("must be eligible at the boundary")
	}
}

func TestObserversRecordOperations(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	tracer := NewJSONTracer(nil)
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithMetricsRecorder(rec), WithTracer(tracer))
	ctx := context.Background()

	if _, _, err := svc.RegisterTubeType(ctx, "PVC-25", "x", 2); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.RegisterEntry(ctx, "UNKNOWN", entryTime, 1); err == nil {
		t.Fatal("expected unknown type failure")
	}

	snap := rec.Snapshot()
	if snap.Results["register_tube_type"]["success"] != 1 {
		t.Fatalf("expected one successful register_tube_type, got %+v", snap.Results)
	}
	if snap.Results["register_entry"]["error"] != 1 {
		t.Fatalf("expected one failed register_entry, got %+v", snap.Results)
	}
	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("expected error span, got %+v", entries[1])
	}
}
