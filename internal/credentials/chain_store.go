// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"context"
	"errors"
)

// ChainStore consults stores in order and returns the first hit.
type ChainStore []Store

// Lookup implements Store. Errors other than ErrRecordNotFound stop the chain.
func (c ChainStore) Lookup(ctx context.Context, id string) (*Record, error) {
	var misses []error
	for _, s := range c {
		rec, err := s.Lookup(ctx, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		misses = append(misses, err)
	}
	if len(misses) == 0 {
		return nil, ErrRecordNotFound
	}
	return nil, errors.Join(misses...)
}

// MapStore is an in-memory Store keyed by record id.
type MapStore map[string]Record

// Lookup implements Store.
func (m MapStore) Lookup(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := m[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}
