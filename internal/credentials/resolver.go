// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"context"
	"errors"
	"strings"
)

// Resolver turns credential ids into credentials using a Store.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveLevo resolves id to Levo CLI credentials. A blank BaseURL becomes
// DefaultBaseURL. Failures wrap ErrCredentialNotFound.
func (r *Resolver) ResolveLevo(ctx context.Context, id string) (*Credentials, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ResolutionError{Kind: ErrCredentialNotFound, ID: id, Reason: "no credential id configured"}
	}

	rec, err := r.store.Lookup(ctx, id)
	if err != nil {
		return nil, &ResolutionError{Kind: ErrCredentialNotFound, ID: id, Err: err}
	}
	if rec.Type != RecordLevoCLI {
		return nil, &ResolutionError{Kind: ErrCredentialNotFound, ID: id, Reason: "record is " + string(rec.Type) + ", not levo-cli"}
	}
	if strings.TrimSpace(rec.OrganizationID) == "" || strings.TrimSpace(rec.AuthorizationKey.Reveal()) == "" {
		return nil, &ResolutionError{Kind: ErrCredentialNotFound, ID: id, Reason: "organization id and authorization key are required"}
	}

	baseURL := strings.TrimSpace(rec.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Credentials{
		OrganizationID:   strings.TrimSpace(rec.OrganizationID),
		AuthorizationKey: Secret(strings.TrimSpace(rec.AuthorizationKey.Reveal())),
		BaseURL:          baseURL,
		Name:             rec.Name(),
	}, nil
}

// ResolveEnvironment resolves id to environment-file text from a
// secret-text or secret-file record. Failures wrap ErrEnvironmentNotFound.
func (r *Resolver) ResolveEnvironment(ctx context.Context, id string) (Secret, error) {
	rec, err := r.store.Lookup(ctx, id)
	if err != nil {
		return "", &ResolutionError{Kind: ErrEnvironmentNotFound, ID: id, Err: err}
	}
	switch rec.Type {
	case RecordSecretText, RecordSecretFile:
		return rec.Secret, nil
	default:
		return "", &ResolutionError{Kind: ErrEnvironmentNotFound, ID: id, Reason: "record is " + string(rec.Type) + ", not a secret text or file"}
	}
}

// IsResolutionError reports whether err is a credential or environment
// resolution failure.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrCredentialNotFound) || errors.Is(err, ErrEnvironmentNotFound)
}
