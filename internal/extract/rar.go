package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"stlpipe/internal/services"
)

// RarBackend extracts rar archives through the external unrar tool.
type RarBackend struct {
	Command string
}

// NewRarBackend returns a backend that invokes command, defaulting to "unrar".
func NewRarBackend(command string) *RarBackend {
	if strings.TrimSpace(command) == "" {
		command = "unrar"
	}
	return &RarBackend{Command: command}
}

func (b *RarBackend) Format() Format { return FormatRar }

func (b *RarBackend) Available() error {
	if _, err := exec.LookPath(b.Command); err != nil {
		return fmt.Errorf("%s not found: %w", b.Command, err)
	}
	return nil
}

func (b *RarBackend) Extract(ctx context.Context, src, dest string, report *Result) error {
	names, err := b.list(ctx, src)
	if err != nil {
		return err
	}

	type listed struct {
		rel   string
		index int
	}
	var accepted []listed
	var excluded []string
	for index, name := range names {
		rel, _, err := resolveEntry(dest, name)
		if err != nil {
			report.Reject(name, err)
			excluded = append(excluded, name)
			continue
		}
		accepted = append(accepted, listed{rel: rel, index: index})
	}

	args := []string{"x", "-o+", "-p-", "-y"}
	if len(excluded) > 0 {
		listFile, err := writeExclusions(dest, excluded)
		if err != nil {
			return &Error{Reason: ReasonWriteFailure, Archive: src, Err: err}
		}
		defer os.Remove(listFile)
		args = append(args, "-x@"+listFile)
	}
	args = append(args, "--", src, dest+string(filepath.Separator))
	if _, err := b.run(ctx, src, args...); err != nil {
		return err
	}

	for _, item := range accepted {
		target := filepath.Join(dest, filepath.FromSlash(item.rel))
		info, err := os.Lstat(target)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			_ = os.Remove(target)
			report.Reject(item.rel, errSymlinkEntry)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		report.Add(item.rel, info.Size(), item.index)
	}
	return removeSymlinks(dest, report)
}

func (b *RarBackend) list(ctx context.Context, src string) ([]string, error) {
	out, err := b.run(ctx, src, "lb", "-p-", "--", src)
	if err != nil {
		return nil, err
	}
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (b *RarBackend) run(ctx context.Context, src string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, b.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, newError(ReasonCapabilityUnavailable, src, err)
	}
	detail := lastLine(strings.TrimSpace(stderr.String()))
	return nil, newError(ReasonCorruptArchive, src, services.Wrap(services.ErrExternalTool, "extracting", b.Command, detail, err))
}

func writeExclusions(dest string, names []string) (string, error) {
	file, err := os.CreateTemp(filepath.Dir(filepath.Clean(dest)), ".unrar-exclude-*.lst")
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if _, err := fmt.Fprintln(file, name); err != nil {
			file.Close()
			os.Remove(file.Name())
			return "", err
		}
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

// removeSymlinks deletes any symlink the tool left under dest.
func removeSymlinks(dest string, report *Result) error {
	return filepath.WalkDir(dest, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		rel, relErr := filepath.Rel(dest, path)
		if relErr != nil {
			rel = path
		}
		if err := os.Remove(path); err != nil {
			return &Error{Reason: ReasonWriteFailure, Entry: filepath.ToSlash(rel), Err: err}
		}
		report.Reject(filepath.ToSlash(rel), errSymlinkEntry)
		return nil
	})
}

func lastLine(s string) string {
	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
