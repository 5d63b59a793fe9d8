// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(WorkspaceLockedId) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), WorkspaceLockedId)
	}
	for i, v := range values {
		if v.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, v.Id(), i+1)
		}
		if strings.TrimSpace(string(v.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", v.Id())
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	t.Parallel()

	if Get(Id(0)) != nil {
		t.Error("Get(0) should return nil")
	}
}

func TestIssue_DocLinksAreCopied(t *testing.T) {
	t.Parallel()

	iss := Get(LoginFailedId)
	links := iss.DocLinks()
	if len(links) == 0 {
		t.Fatal("LoginFailed should carry doc links")
	}
	links[0] = "changed"
	if iss.DocLinks()[0] == "changed" {
		t.Error("DocLinks() must return a copy")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	out, err := Get(CredentialNotFoundId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Levo credentials not found") {
		t.Errorf("Render() output missing heading:\n%s", out)
	}
	if !strings.Contains(out, "See also") {
		t.Error("Render() should append doc links")
	}
}
