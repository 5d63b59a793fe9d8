// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Candidates is one logically scalar field as submitted: zero or more
// values in submission order. Hosts may submit an array where a single
// value is expected.
type Candidates []string

// FirstNonBlank returns the first candidate that is not empty after
// trimming, trimmed. ok is false when every candidate is blank.
func FirstNonBlank(candidates ...string) (value string, ok bool) {
	for _, c := range candidates {
		if t := strings.TrimSpace(c); t != "" {
			return t, true
		}
	}
	return "", false
}

// Resolve returns the first non-blank candidate.
func (c Candidates) Resolve() (string, bool) {
	return FirstNonBlank(c...)
}

// String returns the resolved value, or "" when absent.
func (c Candidates) String() string {
	v, _ := c.Resolve()
	return v
}

// ResolveBool resolves c to a boolean. An absent field is false.
func ResolveBool(c Candidates) (bool, error) {
	v, ok := c.Resolve()
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%q is not a boolean", v)
	}
	return b, nil
}

// candidatesFrom converts a decoded CUE value (string, bool or list of
// them) into candidates.
func candidatesFrom(v any) (Candidates, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return Candidates{val}, nil
	case bool:
		return Candidates{strconv.FormatBool(val)}, nil
	case []any:
		out := make(Candidates, 0, len(val))
		for i, item := range val {
			inner, err := candidatesFrom(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, inner...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
