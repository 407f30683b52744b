package generation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the generation package.
var (
	// ErrNoProvider is returned when a Client is built without a provider.
	ErrNoProvider = errors.New("no provider configured")

	// ErrEmptyPrompt is returned for requests with neither prompt nor attachments.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// ProviderError reports a provider failure that ended a call: either a
// permanent error or the last transient error after retries ran out.
type ProviderError struct {
	Provider string
	Label    string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("generation %q: provider %s failed after %d attempt(s): %v",
		e.Label, e.Provider, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError reports a response that could not be parsed as JSON, did
// not conform to the requested schema or failed the request's Check. It is
// never retried or cached.
type ValidationError struct {
	Label   string
	Content string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("generation %q: invalid structured output: %v", e.Label, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
