// SPDX-License-Identifier: MPL-2.0

package testrun

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
var ErrConfiguration = errors.New("invalid test-run configuration")

type (
	// Problem is one field-level validation failure.
	Problem struct {
		Field   string
		Message string
		// Err is the underlying parse error, if any (e.g. a *syntax.Error).
		Err error
	}

	// ConfigurationError reports every problem found while validating a
	// Config. No process has been started when it is returned.
	ConfigurationError struct {
		Mode     Mode
		Problems []Problem
	}

	// Warning is a non-fatal validation finding.
	Warning struct {
		Field   string
		Message string
	}

	// Warnings is the ordered list of findings for one dispatch.
	Warnings []Warning
)

// String returns "field: message", or the message alone if there is no field.
func (p Problem) String() string {
	msg := p.Message
	if p.Err != nil {
		msg += ": " + p.Err.Error()
	}
	if p.Field == "" {
		return msg
	}
	return p.Field + ": " + msg
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	if e.Mode == "" {
		return fmt.Sprintf("invalid configuration: %s", strings.Join(parts, "; "))
	}
	return fmt.Sprintf("invalid %s configuration: %s", e.Mode, strings.Join(parts, "; "))
}

// Unwrap exposes ErrConfiguration and every underlying parse error.
func (e *ConfigurationError) Unwrap() []error {
	errs := []error{ErrConfiguration}
	for _, p := range e.Problems {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}

// Fields returns the names of the offending fields in report order.
func (e *ConfigurationError) Fields() []string {
	fields := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		fields = append(fields, p.Field)
	}
	return fields
}

// String returns "field: message".
func (w Warning) String() string {
	return w.Field + ": " + w.Message
}

// Strings renders every warning.
func (ws Warnings) Strings() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}
