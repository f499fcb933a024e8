package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/charmap"
)

// ZipBackend extracts zip archives in-process.
type ZipBackend struct{}

func (ZipBackend) Format() Format { return FormatZip }

func (ZipBackend) Available() error { return nil }

func (ZipBackend) Extract(ctx context.Context, src, dest string, report *Result) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return newError(ReasonCorruptArchive, src, err)
	}
	defer reader.Close()

	for index, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entryName(file)
		if file.FileInfo().IsDir() {
			continue
		}
		if file.Mode()&os.ModeSymlink != 0 {
			report.Reject(name, errSymlinkEntry)
			continue
		}
		rel, target, err := resolveEntry(dest, name)
		if err != nil {
			report.Reject(name, err)
			continue
		}
		size, err := writeZipEntry(file, target)
		if err != nil {
			var extractErr *Error
			if errors.As(err, &extractErr) {
				extractErr.Archive = src
				extractErr.Entry = rel
			}
			return err
		}
		report.Add(rel, size, index)
	}
	return nil
}

func entryName(file *zip.File) string {
	if !file.NonUTF8 {
		return file.Name
	}
	decoded, err := charmap.CodePage437.NewDecoder().String(file.Name)
	if err != nil {
		return file.Name
	}
	return decoded
}

func writeZipEntry(file *zip.File, target string) (int64, error) {
	rc, err := file.Open()
	if err != nil {
		return 0, &Error{Reason: ReasonCorruptArchive, Err: err}
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, &Error{Reason: ReasonWriteFailure, Err: err}
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &Error{Reason: ReasonWriteFailure, Err: err}
	}

	dst := &trackingWriter{w: out}
	written, copyErr := io.Copy(dst, rc)
	closeErr := out.Close()
	switch {
	case copyErr != nil && dst.err != nil:
		return 0, &Error{Reason: ReasonWriteFailure, Err: copyErr}
	case copyErr != nil:
		return 0, &Error{Reason: ReasonCorruptArchive, Err: fmt.Errorf("read entry: %w", copyErr)}
	case closeErr != nil:
		return 0, &Error{Reason: ReasonWriteFailure, Err: closeErr}
	}
	return written, nil
}

// trackingWriter remembers write-side failures so they can be told apart
// from decompression errors.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
