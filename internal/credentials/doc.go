// SPDX-License-Identifier: MPL-2.0

// Package credentials resolves opaque credential ids into Levo CLI
// credentials and environment-file payloads.
//
// Records come from a Store: a credentials.yaml file, LEVO_CREDENTIALS_*
// environment variables, or a chain of both. Secret values are carried as
// Secret, which masks itself in every fmt and slog rendering.
package credentials
