package topology

import "fmt"

// ConfigurationError reports invalid bootstrap input: a malformed link
// matrix, a bad accelerator subset, or impossible cluster parameters. It
// is fatal to the current bootstrap attempt; the caller must fix the
// input and retry.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// InternalError reports an invariant violation downstream of a validated
// descriptor. It indicates a bug, not bad input.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Reason
}

// Internalf builds an InternalError from a format string.
func Internalf(format string, args ...interface{}) error {
	return &InternalError{Reason: fmt.Sprintf(format, args...)}
}
