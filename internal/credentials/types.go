// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultBaseURL is the Levo SaaS API endpoint.
	DefaultBaseURL = "https://api.levo.ai"

	// RecordLevoCLI holds an organization id and CLI authorization key.
	RecordLevoCLI RecordType = "levo-cli"
	// RecordSecretText holds an inline secret string.
	RecordSecretText RecordType = "secret-text"
	// RecordSecretFile holds secret file content.
	RecordSecretFile RecordType = "secret-file"
)

var (
	// ErrCredentialNotFound is returned when a Levo credential id cannot be resolved.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrEnvironmentNotFound is returned when an environment secret id cannot be resolved.
	ErrEnvironmentNotFound = errors.New("environment secret not found")
	// ErrRecordNotFound is returned by a Store that has no record for an id.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidRecordType is returned when a RecordType value is not recognized.
	ErrInvalidRecordType = errors.New("invalid record type")
)

type (
	// RecordType identifies what a stored record holds.
	RecordType string

	// Record is one entry of a credential store.
	Record struct {
		ID          string
		Type        RecordType
		Description string

		// Levo CLI records.
		OrganizationID   string
		AuthorizationKey Secret
		BaseURL          string

		// Secret text and secret file records. For secret files, Secret
		// holds the file content.
		Secret Secret
	}

	// Store looks records up by id. Implementations return an error wrapping
	// ErrRecordNotFound when the id is unknown.
	Store interface {
		Lookup(ctx context.Context, id string) (*Record, error)
	}

	// Credentials are the resolved Levo CLI credentials for one run.
	Credentials struct {
		OrganizationID   string
		AuthorizationKey Secret
		BaseURL          string
		// Name is the record description, or its id.
		Name string
	}

	// ResolutionError is returned when a credential id cannot be resolved.
	// Kind is ErrCredentialNotFound or ErrEnvironmentNotFound.
	ResolutionError struct {
		Kind   error
		ID     string
		Reason string
		Err    error
	}
)

// Validate returns an error if the RecordType is not recognized.
func (t RecordType) Validate() error {
	switch t {
	case RecordLevoCLI, RecordSecretText, RecordSecretFile:
		return nil
	default:
		return fmt.Errorf("%w %q (valid: levo-cli, secret-text, secret-file)", ErrInvalidRecordType, string(t))
	}
}

// Name returns the description, falling back to the id.
func (r *Record) Name() string {
	if r.Description != "" {
		return r.Description
	}
	return r.ID
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s: %q", e.Kind, e.ID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes Kind and the underlying store error.
func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
