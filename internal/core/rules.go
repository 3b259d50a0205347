package core

import (
	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

type (
	// Rule defines an evaluation executed within a transaction boundary.
	Rule = domain.Rule
	// RulesEngine orchestrates rule evaluation.
	RulesEngine = domain.RulesEngine
	// TransactionView provides read-only snapshot access for rules.
	TransactionView = domain.TransactionView
	// Transaction represents a mutable unit of work against the store.
	Transaction = domain.Transaction
	// PersistentStore abstracts durable backends.
	PersistentStore = domain.PersistentStore
)

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in invariant
// set. The service checks preconditions with typed errors before mutating;
// these rules are the backstop for callers that mutate the store directly.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewDwellGateRule())
	engine.Register(NewQuantityConservationRule())
	engine.Register(NewWithdrawalCompletenessRule())
	return engine
}
