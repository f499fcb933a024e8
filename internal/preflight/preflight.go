package preflight

import (
	"context"
	"os"

	"stlpipe/internal/config"
	"stlpipe/internal/deps"
)

// Result reports the outcome of a single preflight check. Optional results
// are informational and never block a run.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes the checks a run needs before it accepts work.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	results = append(results, CheckFreeSpace("Scratch free space", cfg.Paths.ScratchDir, uint64(cfg.Extraction.MinFreeSpaceMB)))

	if cfg.Upload.Enabled {
		results = append(results, CheckCredentialsFile("Google Drive credentials", cfg.GDrive.CredentialsFile))
	}

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Optional: status.Optional,
			Detail:   statusDetail(status),
		})
	}

	if cfg.Notifications.NtfyTopic != "" {
		ntfy := CheckNtfy(ctx, cfg.Notifications.NtfyTopic)
		ntfy.Optional = true
		results = append(results, ntfy)
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

// CheckSystemDeps evaluates the external binaries the extractor can use.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{deps.Unrar(cfg.Extraction.UnrarBinary)})
}

// CheckCredentialsFile verifies that a credentials file exists and is readable.
func CheckCredentialsFile(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: path + " (error: does not exist)"}
		}
		return Result{Name: name, Detail: path + " (error: " + err.Error() + ")"}
	}
	_ = file.Close()
	return Result{Name: name, Passed: true, Detail: path}
}

func statusDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	if status.Description != "" {
		return status.Detail + " (" + status.Description + ")"
	}
	return status.Detail
}
