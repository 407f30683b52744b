package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline package.
var (
	// ErrNoDocument is returned when a run has no source document.
	ErrNoDocument = errors.New("no document")

	// ErrNoQuestions is returned when page analysis finds nothing to extract.
	ErrNoQuestions = errors.New("no questions found")

	// ErrMixedTypes is returned when fragments sharing a cross id disagree on type.
	ErrMixedTypes = errors.New("group mixes content types")

	// ErrUnknownType is returned for page items with an unrecognized type.
	ErrUnknownType = errors.New("unknown content type")

	// ErrMissingResult is returned when a dispatched group produced no record.
	ErrMissingResult = errors.New("group has no extraction result")

	// ErrNoExtractor is returned when no extractor handles a group's type.
	ErrNoExtractor = errors.New("no extractor for type")

	// ErrSharedContextConflict is returned when EMI stems disagree on the shared option list.
	ErrSharedContextConflict = errors.New("conflicting shared option lists")
)

// StageError reports a failure inside one stage, naming the unit that failed
// (an image, a page range or a group).
type StageError struct {
	Stage State
	Unit  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Unit, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AssemblyError is a data-integrity failure tied to one group.
type AssemblyError struct {
	CrossID  string
	Position int
	Reason   string
	Err      error
}

func (e *AssemblyError) Error() string {
	id := e.CrossID
	if id == "" {
		id = "(none)"
	}
	return fmt.Sprintf("assembly: cross id %s, position %d: %s", id, e.Position, e.Reason)
}

func (e *AssemblyError) Unwrap() error { return e.Err }
