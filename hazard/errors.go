/*
errors.go - Centralized error types for the return-period calculator

PURPOSE:
  All error types in one place. Callers classify failures with errors.Is
  against the sentinels or errors.As against the structured types.

ERROR CATEGORIES:
  1. Input errors - malformed or inconsistent event set / request list
  2. Configuration errors - terrain join or datum problems
  3. Store errors - missing records

No error here is retryable: the computation is pure and deterministic, a
retry with the same input fails the same way.

SEE ALSO:
  - validate.go: raises InputError
  - depth.go: raises ConfigurationError
*/
package hazard

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is the root of every InputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration is the root of every ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrEventSetNotFound is returned when a stored event set doesn't exist.
	ErrEventSetNotFound = errors.New("event set not found")

	// ErrTerrainNotFound is returned when a stored terrain model doesn't exist.
	ErrTerrainNotFound = errors.New("terrain not found")

	// ErrRunNotFound is returned when a queued run doesn't exist.
	ErrRunNotFound = errors.New("run not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError describes which input invariant was violated.
type InputError struct {
	Field   string  // e.g. "events", "frequency", "return_periods"
	EventID EventID // offending event, if any
	Cell    CellID  // offending cell, if any
	Reason  string
}

func (e *InputError) Error() string {
	var b strings.Builder
	b.WriteString("invalid input")
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.EventID != "" {
		fmt.Fprintf(&b, " (event %s", e.EventID)
		if e.Cell != "" {
			fmt.Fprintf(&b, ", cell %s", e.Cell)
		}
		b.WriteString(")")
	} else if e.Cell != "" {
		fmt.Fprintf(&b, " (cell %s)", e.Cell)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// ConfigurationError reports a terrain join or datum problem. Cells lists
// the offending cells when the problem is cell specific.
type ConfigurationError struct {
	Reason string
	Cells  []CellID
}

// maxReportedCells bounds the cell list rendered in Error().
const maxReportedCells = 10

func (e *ConfigurationError) Error() string {
	if len(e.Cells) == 0 {
		return "configuration error: " + e.Reason
	}
	shown := e.Cells
	if len(shown) > maxReportedCells {
		shown = shown[:maxReportedCells]
	}
	names := make([]string, len(shown))
	for i, c := range shown {
		names[i] = string(c)
	}
	suffix := ""
	if len(e.Cells) > maxReportedCells {
		suffix = fmt.Sprintf(" and %d more", len(e.Cells)-maxReportedCells)
	}
	return fmt.Sprintf("configuration error: %s: cells %s%s", e.Reason, strings.Join(names, ", "), suffix)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInputError returns true if err is caused by a malformed event set or request.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConfigurationError returns true if err is caused by terrain or datum setup.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsNotFound returns true if the error indicates a missing stored resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventSetNotFound) ||
		errors.Is(err, ErrTerrainNotFound) ||
		errors.Is(err, ErrRunNotFound)
}

// IsClientError returns true if the error is due to caller-supplied data.
func IsClientError(err error) bool {
	return IsInputError(err) || IsConfigurationError(err)
}
