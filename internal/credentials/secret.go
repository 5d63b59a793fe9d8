// SPDX-License-Identifier: MPL-2.0

package credentials

import "log/slog"

const maskedShort = "***"

// Secret is a sensitive string. Formatting it with fmt or logging it with
// slog yields the masked form; Reveal returns the plain text.
type Secret string

// MaskSecret renders key for diagnostics: keys longer than six characters
// keep their first and last three characters, shorter keys become "***".
// Length counts runes.
func MaskSecret(key string) string {
	if r := []rune(key); len(r) > 6 {
		return string(r[:3]) + "..." + string(r[len(r)-3:])
	}
	return maskedShort
}

// Reveal returns the plain-text secret. Use only when handing it to the
// process that needs it.
func (s Secret) Reveal() string { return string(s) }

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool { return s == "" }

// String returns the masked secret.
func (s Secret) String() string { return MaskSecret(string(s)) }

// GoString returns the masked secret for %#v.
func (s Secret) GoString() string { return `credentials.Secret("` + s.String() + `")` }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }
