package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"stlpipe/internal/config"
	"stlpipe/internal/logging"
)

// Backend extracts one archive format.
type Backend interface {
	Format() Format
	// Available reports whether the backend can run on this host.
	Available() error
	Extract(ctx context.Context, src, dest string, report *Result) error
}

// Extractor dispatches archives to the backend for their detected format.
type Extractor struct {
	backends map[Format]Backend
	logger   *slog.Logger
}

// New builds an Extractor with the zip backend and the unrar backend
// configured by cfg.
func New(cfg *config.Config, logger *slog.Logger) *Extractor {
	command := ""
	if cfg != nil {
		command = cfg.Extraction.UnrarBinary
	}
	return NewWithBackends(logger, ZipBackend{}, NewRarBackend(command))
}

// NewWithBackends builds an Extractor from explicit backends. A later backend
// for the same format replaces an earlier one.
func NewWithBackends(logger *slog.Logger, backends ...Backend) *Extractor {
	e := &Extractor{
		backends: make(map[Format]Backend, len(backends)),
		logger:   logging.NewComponentLogger(logger, "extract"),
	}
	for _, backend := range backends {
		e.backends[backend.Format()] = backend
	}
	return e
}

// Extract unpacks artifactPath into destDir. On failure the returned Result
// still lists whatever was written before the error.
//
// A byte-split set (pack.zip.001, pack.zip.002, ...) is first joined next to
// destDir and the joined file is extracted. RAR volume sets are read in place
// by the backend.
func (e *Extractor) Extract(ctx context.Context, artifactPath, destDir string) (*Result, error) {
	if splitPartPattern.MatchString(filepath.Base(artifactPath)) {
		joined, tmpDir, err := joinSplitVolumes(ctx, artifactPath, filepath.Dir(destDir))
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmpDir)
		artifactPath = joined
	}
	format, err := Detect(artifactPath)
	if err != nil {
		return nil, err
	}
	backend, ok := e.backends[format]
	if !ok {
		return nil, newError(ReasonCapabilityUnavailable, artifactPath,
			fmt.Errorf("no backend registered for %s", format))
	}
	if err := backend.Available(); err != nil {
		return nil, newError(ReasonCapabilityUnavailable, artifactPath, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, newError(ReasonWriteFailure, artifactPath, err)
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("extracting archive",
		logging.String("path", artifactPath),
		logging.String("format", string(format)),
		logging.String(logging.FieldEventType, "extract_start"),
	)

	result := &Result{Format: format}
	err = backend.Extract(ctx, artifactPath, destDir, result)
	for _, rejected := range result.Rejected {
		logging.WarnWithContext(logger, "unsafe archive entry skipped", "entry_rejected",
			logging.String("entry", rejected.Path),
			logging.String("reason", rejected.Reason),
			logging.String(logging.FieldErrorHint, "inspect the archive source; the entry tried to leave the extraction directory"),
			logging.String(logging.FieldImpact, "entry not extracted; remaining entries processed"),
		)
	}
	if err != nil {
		return result, err
	}

	logger.Info("archive extracted",
		logging.Int("entries", len(result.Entries)),
		logging.Int("rejected", len(result.Rejected)),
		logging.String(logging.FieldEventType, "extract_complete"),
	)
	return result, nil
}
