package services

import "errors"

var (
	// ErrUnknownEntity is returned when a commit or registration
	// references an entity id that does not exist.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrDuplicateEntity is returned when a new canonical entity would
	// share a normalized name with an existing entity of the same kind.
	ErrDuplicateEntity = errors.New("entity with the same normalized name already exists")

	// ErrAlternativeCollision is returned when an alternative name would
	// collide with a different entity's canonical or alternative key.
	ErrAlternativeCollision = errors.New("alternative name collides with another entity")

	// ErrUnknownField is returned for commit fields other than supplier
	// or bank.
	ErrUnknownField = errors.New("unknown decision field")

	// ErrKindMismatch is returned when the committed entity's kind does
	// not match the decision field (e.g. a bank id for the supplier
	// field).
	ErrKindMismatch = errors.New("entity kind does not match decision field")

	// ErrGuaranteeNotFound is returned when the guarantee id or uuid
	// does not exist.
	ErrGuaranteeNotFound = errors.New("guarantee not found")

	// ErrInvalidTransition is returned for status changes the workflow
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoHistory is returned by point-in-time queries for timestamps
	// before the guarantee's first recorded event.
	ErrNoHistory = errors.New("no history at or before the requested time")

	// ErrEmptyKey is returned when an operation requires a non-empty
	// normalized key (e.g. confirming garbage input).
	ErrEmptyKey = errors.New("input normalizes to an empty key")
)
