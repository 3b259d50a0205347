package core

import "github.com/Kira-pln/inventario-tubetes/pkg/domain"

type (
	EntityType           = domain.EntityType
	BatchState           = domain.BatchState
	Severity             = domain.Severity
	TubeType             = domain.TubeType
	Batch                = domain.Batch
	Change               = domain.Change
	Action               = domain.Action
	Violation            = domain.Violation
	Result               = domain.Result
	RuleViolationError   = domain.RuleViolationError
	ValidationError      = domain.ValidationError
	NotFoundError        = domain.NotFoundError
	NotEligibleYetError  = domain.NotEligibleYetError
	InvalidQuantityError = domain.InvalidQuantityError
	InvalidHumidityError = domain.InvalidHumidityError
	PersistenceError     = domain.PersistenceError
)

const (
	EntityTubeType = domain.EntityTubeType
	EntityBatch    = domain.EntityBatch
)

const (
	StatePending   = domain.StatePending
	StateEligible  = domain.StateEligible
	StateWithdrawn = domain.StateWithdrawn
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)
