package contract

import "errors"

var (
	// ErrUnknownCapability marks a capability name absent from the catalog.
	// Config or programming error, fatal to the request.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrCapabilityDenied marks a policy re-check failure. Expected and
	// recoverable; the turn degrades to a fallback answer.
	ErrCapabilityDenied = errors.New("capability denied")

	ErrCapabilityTimeout   = errors.New("capability timed out")
	ErrCapabilityExecution = errors.New("capability execution failed")

	// ErrReasoningEngine covers an unreachable engine or a malformed
	// response. One retry, then a fixed fallback answer.
	ErrReasoningEngine = errors.New("reasoning engine failed")

	// ErrPersistence marks a transcript or audit write failure. The turn's
	// answer is still delivered, flagged as not persisted.
	ErrPersistence = errors.New("persistence failed")

	ErrValidation = errors.New("validation failed")
)
