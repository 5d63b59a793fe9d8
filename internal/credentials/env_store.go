// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore reads records from environment variables. For id "levo-prod"
// and prefix "LEVO_CREDENTIALS" it consults:
//
//	LEVO_CREDENTIALS_LEVO_PROD_ORGANIZATION_ID
//	LEVO_CREDENTIALS_LEVO_PROD_AUTHORIZATION_KEY
//	LEVO_CREDENTIALS_LEVO_PROD_BASE_URL
//	LEVO_CREDENTIALS_LEVO_PROD_SECRET
//
// An id with an authorization key is a levo-cli record; an id with only
// SECRET is a secret-text record.
type EnvStore struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvStore creates an EnvStore reading the process environment.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{prefix: prefix, lookup: os.LookupEnv}
}

// NewEnvStoreWithLookup creates an EnvStore with a custom variable lookup.
func NewEnvStoreWithLookup(prefix string, lookup func(string) (string, bool)) *EnvStore {
	return &EnvStore{prefix: prefix, lookup: lookup}
}

// VarName returns the variable consulted for id and field.
func (s *EnvStore) VarName(id, field string) string {
	key := strings.ToUpper(id)
	key = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, key)
	return s.prefix + "_" + key + "_" + field
}

// Lookup implements Store.
func (s *EnvStore) Lookup(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	get := func(field string) string {
		v, _ := s.lookup(s.VarName(id, field))
		return v
	}

	if key := get("AUTHORIZATION_KEY"); key != "" {
		return &Record{
			ID:               id,
			Type:             RecordLevoCLI,
			OrganizationID:   get("ORGANIZATION_ID"),
			AuthorizationKey: Secret(key),
			BaseURL:          get("BASE_URL"),
		}, nil
	}
	if secret := get("SECRET"); secret != "" {
		return &Record{ID: id, Type: RecordSecretText, Secret: Secret(secret)}, nil
	}
	return nil, fmt.Errorf("no %s* variables: %w", s.VarName(id, ""), ErrRecordNotFound)
}
