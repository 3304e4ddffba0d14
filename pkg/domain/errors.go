package domain

import (
	"errors"
	"fmt"
)

// ErrConsistencyViolation is returned by persistence implementations when a
// uniqueness constraint rejects a write, e.g. a second report for one order.
var ErrConsistencyViolation = errors.New("consistency violation")

// ErrEmptySubmission is returned when a result batch carries no measurements.
var ErrEmptySubmission = errors.New("no results submitted")

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// UnorderedParameterError is returned when a submitted parameter is not part of
// the sample's ordered parameter set.
type UnorderedParameterError struct {
	SampleID    string
	ParameterID string
}

func (e *UnorderedParameterError) Error() string {
	return fmt.Sprintf("parameter %s was not ordered for sample %s", e.ParameterID, e.SampleID)
}

// InvalidValueError is returned when a submitted value does not parse to a
// finite number.
type InvalidValueError struct {
	ParameterID   string
	ParameterName string
	Value         string
	Err           error
}

func (e *InvalidValueError) Error() string {
	name := e.ParameterName
	if name == "" {
		name = e.ParameterID
	}
	return fmt.Sprintf("invalid value %q for parameter %s", e.Value, name)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned when a status change would move an entity
// backwards or into a state owned by another workflow step.
type InvalidTransitionError struct {
	Entity EntityType
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// ValidationError reports malformed input, such as an order item without
// samples.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rules: %s: %s", v.Rule, v.Message)
		}
	}
	return "transaction blocked by rules"
}

// IsClientError reports whether err stems from invalid caller input rather
// than a persistence failure.
func IsClientError(err error) bool {
	var (
		unordered  *UnorderedParameterError
		invalid    *InvalidValueError
		notFound   NotFoundError
		transition *InvalidTransitionError
		invalidIn  *ValidationError
	)
	switch {
	case errors.As(err, &unordered), errors.As(err, &invalid), errors.As(err, &notFound), errors.As(err, &transition), errors.As(err, &invalidIn):
		return true
	case errors.Is(err, ErrEmptySubmission):
		return true
	}
	return false
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
