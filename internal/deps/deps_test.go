package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"stlpipe/internal/deps"
)

func TestCheckBinaries(t *testing.T) {
	present := filepath.Join(t.TempDir(), "unrar")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	tests := []struct {
		command       string
		wantAvailable bool
		wantCommand   string
		wantDetail    string
	}{
		{command: present, wantAvailable: true, wantCommand: present},
		{command: "unrar-missing-on-purpose", wantCommand: "unrar-missing-on-purpose", wantDetail: `binary "unrar-missing-on-purpose" not found`},
		{command: "  ", wantDetail: "command not configured"},
	}
	for _, tc := range tests {
		got := deps.CheckBinaries([]deps.Requirement{deps.Unrar(tc.command)})
		if len(got) != 1 {
			t.Fatalf("expected one status, got %d", len(got))
		}
		status := got[0]
		if status.Available != tc.wantAvailable || status.Command != tc.wantCommand || status.Detail != tc.wantDetail {
			t.Fatalf("CheckBinaries(%q) = %+v", tc.command, status)
		}
		if !status.Optional || status.Name != "unrar" {
			t.Fatalf("requirement fields not carried over: %+v", status)
		}
	}
}
