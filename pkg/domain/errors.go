package domain

import (
	"fmt"
	"time"
)

// ValidationError reports an empty required field or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a referenced type or batch does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotEligibleYetError is returned when a withdrawal is attempted before the
// batch's dwell time has elapsed.
type NotEligibleYetError struct {
	BatchID     int64
	EligibleAt  time.Time
	AttemptedAt time.Time
}

func (e NotEligibleYetError) Error() string {
	return fmt.Sprintf("batch %d not eligible until %s (attempted at %s)",
		e.BatchID, e.EligibleAt.Format(time.RFC3339), e.AttemptedAt.Format(time.RFC3339))
}

// InvalidQuantityError is returned when a withdrawal quantity falls outside
// [1, quantity on hand].
type InvalidQuantityError struct {
	Requested int
	OnHand    int
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("withdrawal quantity %d outside [1, %d]", e.Requested, e.OnHand)
}

// InvalidHumidityError is returned when exit humidity falls outside [0, 100].
type InvalidHumidityError struct {
	Humidity int
}

func (e InvalidHumidityError) Error() string {
	return fmt.Sprintf("exit humidity %d%% outside [0, 100]", e.Humidity)
}

// PersistenceError wraps a storage read or write failure. The operation that
// triggered it has been rolled back in memory so state stays consistent with
// disk.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }
