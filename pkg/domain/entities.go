// Package domain defines the persistent entities, value types, and rule
// evaluation primitives of the tubete curing-chamber inventory.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityTubeType identifies a tube type definition in the catalog.
	EntityTubeType EntityType = "tube_type"
	// EntityBatch identifies an inventory batch in the ledger.
	EntityBatch EntityType = "batch"
)

// TubeType describes a registered tube model and the minimum time its
// batches must dwell in the curing chamber before withdrawal.
type TubeType struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DwellHours  int       `json:"dwell_hours"`
	CreatedAt   time.Time `json:"created_at"`
}

// Batch is a quantity of tubetes registered together, sharing one entry
// timestamp and one type. The type description is snapshotted at entry so a
// later catalog change never corrupts the ledger row.
type Batch struct {
	ID                int64      `json:"id"`
	TypeName          string     `json:"type_name"`
	Description       string     `json:"description"`
	QuantityOnHand    int        `json:"quantity_on_hand"`
	EnteredAt         time.Time  `json:"entered_at"`
	EligibleAt        time.Time  `json:"eligible_at"`
	WithdrawnAt       *time.Time `json:"withdrawn_at,omitempty"`
	QuantityWithdrawn *int       `json:"quantity_withdrawn,omitempty"`
	ExitHumidity      *int       `json:"exit_humidity,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// BatchState is the derived lifecycle position of a batch. It is computed
// from the batch fields and the observation instant, never stored.
type BatchState string

// Canonical batch states derived at read time.
const (
	// StatePending means the batch is in the chamber and not yet withdrawable.
	StatePending BatchState = "pending"
	// StateEligible means the dwell time has elapsed and the batch may be withdrawn.
	StateEligible BatchState = "eligible"
	// StateWithdrawn means at least one withdrawal has been recorded.
	StateWithdrawn BatchState = "withdrawn"
)

// StateAt derives the batch state at the given instant.
func (b Batch) StateAt(now time.Time) BatchState {
	if b.WithdrawnAt != nil {
		return StateWithdrawn
	}
	if now.Before(b.EligibleAt) {
		return StatePending
	}
	return StateEligible
}

// EligibleBy reports whether the dwell gate is open at the given instant.
func (b Batch) EligibleBy(now time.Time) bool {
	return !now.Before(b.EligibleAt)
}

// InStock reports whether the batch still counts toward current stock.
// Current semantics keep a batch out of stock once any withdrawal is
// recorded, even if quantity remains on hand.
func (b Batch) InStock() bool {
	return b.WithdrawnAt == nil
}

// Depleted reports whether no quantity remains on hand.
func (b Batch) Depleted() bool {
	return b.QuantityOnHand == 0
}

// Clone returns a deep copy of the batch, detaching pointer fields.
func (b Batch) Clone() Batch {
	cp := b
	if b.WithdrawnAt != nil {
		t := *b.WithdrawnAt
		cp.WithdrawnAt = &t
	}
	if b.QuantityWithdrawn != nil {
		q := *b.QuantityWithdrawn
		cp.QuantityWithdrawn = &q
	}
	if b.ExitHumidity != nil {
		h := *b.ExitHumidity
		cp.ExitHumidity = &h
	}
	return cp
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured per transaction. The
// ledger is append-and-mutate: batches are never deleted.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
