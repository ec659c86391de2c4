package llm

import (
	"errors"
	"fmt"
	"strings"
)

var ErrAllProvidersFailed = errors.New("all LLM providers failed")

// ProviderError is one provider's failed attempt.
type ProviderError struct {
	Provider string
	Err      error
	Raw      string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersFailedError aggregates every attempt of one call.
type AllProvidersFailedError struct {
	Attempts []*ProviderError
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("%s (%d attempts): %s", ErrAllProvidersFailed, len(e.Attempts), strings.Join(parts, "; "))
}

func (e *AllProvidersFailedError) Is(target error) bool { return target == ErrAllProvidersFailed }

func (e *AllProvidersFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a)
	}
	return out
}

// Last is the final attempt's error, or nil.
func (e *AllProvidersFailedError) Last() *ProviderError {
	if e == nil || len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1]
}
