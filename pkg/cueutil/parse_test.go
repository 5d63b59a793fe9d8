// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Settings: {
	name:     string
	retries?: int & >=0
	tags?:    [...string]
}
`

type testSettings struct {
	Name    string   `json:"name"`
	Retries int      `json:"retries"`
	Tags    []string `json:"tags"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	got, err := ParseAndDecode[testSettings]([]byte(testSchema), []byte(`name: "levo", retries: 2, tags: ["a", "b"]`), "#Settings")
	if err != nil {
		t.Fatalf("ParseAndDecode() error = %v", err)
	}
	if got.Name != "levo" || got.Retries != 2 || len(got.Tags) != 2 {
		t.Errorf("ParseAndDecode() = %+v", got)
	}
}

func TestParseAndDecode_SchemaViolation(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testSettings]([]byte(testSchema), []byte(`name: "levo", retries: -1`), "#Settings",
		WithFilename("settings.cue"))
	if err == nil {
		t.Fatal("expected validation error for negative retries")
	}
	if !strings.Contains(err.Error(), "settings.cue") {
		t.Errorf("error should name the file, got: %v", err)
	}
	if !strings.Contains(err.Error(), "retries") {
		t.Errorf("error should name the offending field, got: %v", err)
	}
}

func TestParseAndDecode_NonConcrete(t *testing.T) {
	t.Parallel()

	if _, err := ParseAndDecode[map[string]any]([]byte(testSchema), []byte(`retries: 1`), "#Settings"); err == nil {
		t.Error("expected error for missing concrete name")
	}
	if _, err := ParseAndDecode[map[string]any]([]byte(testSchema), []byte(`retries: 1`), "#Settings", WithConcrete(false)); err != nil {
		t.Errorf("non-concrete parse error = %v", err)
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 10), 10, "f.cue"); err != nil {
		t.Errorf("CheckFileSize at limit: %v", err)
	}
	if err := CheckFileSize(make([]byte, 11), 10, "f.cue"); err == nil {
		t.Error("CheckFileSize over limit should fail")
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{path: nil, want: ""},
		{path: []string{"mode"}, want: "mode"},
		{path: []string{"timeouts", "long"}, want: "timeouts.long"},
		{path: []string{"test_users", "0"}, want: "test_users[0]"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
