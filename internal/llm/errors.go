package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyCode is returned when a provider answered but no source code could be found.
var ErrEmptyCode = errors.New("model returned no code")

// GenerationError is any failure to obtain code from the model: transport, non-2xx
// status, malformed or empty response.
type GenerationError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func NewGenerationError(provider string, status int, err error) *GenerationError {
	return &GenerationError{Provider: provider, StatusCode: status, Err: err}
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s code generation failed (http %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s code generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
