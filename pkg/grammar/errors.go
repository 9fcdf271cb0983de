package grammar

import (
	"errors"
	"fmt"
)

// Rejection reasons. They are stable and safe to show to callers.
var (
	ErrEmptyQuery      = errors.New("empty query")
	ErrGrammarMismatch = errors.New("query does not match the allowed grammar")
)

// ConfigError reports a schema or grammar that cannot be compiled.
// It is fatal at startup and never a per-request condition.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid grammar configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// Rejection is returned by Validate for text outside the allowed grammar.
// Error reports only Reason; Detail carries parser diagnostics for debug
// logging and must not be shown to callers.
type Rejection struct {
	Reason error // ErrEmptyQuery or ErrGrammarMismatch
	Detail error
}

func (r *Rejection) Error() string { return r.Reason.Error() }

func (r *Rejection) Unwrap() error { return r.Reason }

// IsRejection reports whether err is a validation rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// IsConfigError reports whether err is a grammar configuration error.
func IsConfigError(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}
