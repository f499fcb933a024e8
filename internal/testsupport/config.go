package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"stlpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Notifications and metrics are left unconfigured.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Watch.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Upload.RetryBaseDelaySeconds = 1
	cfgVal.Upload.RetryMaxDelaySeconds = 1
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Metrics.Bind = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithUploadDisabled turns off the upload and link stages.
func WithUploadDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Enabled = false
	}
}

// WithPreserveStructure keeps relative paths inside the model archive.
func WithPreserveStructure() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sort.PreserveStructure = true
	}
}

// WithUnrarScript installs a shell script as the unrar binary used by the
// generated config.
func WithUnrarScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.UnrarBinary = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "unrar", script)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, unrar is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"unrar"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// WriteScript writes an executable /bin/sh script named name into dir and
// returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
