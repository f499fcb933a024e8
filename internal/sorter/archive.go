package sorter

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// writeArchive writes models into a zip at target. The archive is built in a
// temp file beside target and renamed into place after it is synced.
func writeArchive(ctx context.Context, target string, models []modelFile, level int) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".stl-*.zip.tmp")
	if err != nil {
		return writeFailure(target, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := addMember(zw, model); err != nil {
			zw.Close()
			return writeFailure(model.source, err)
		}
	}
	if err := zw.Close(); err != nil {
		return writeFailure(target, err)
	}
	if err := tmp.Sync(); err != nil {
		return writeFailure(target, err)
	}
	if err := tmp.Close(); err != nil {
		return writeFailure(target, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return writeFailure(target, err)
	}
	return nil
}

func addMember(zw *zip.Writer, model modelFile) error {
	src, err := os.Open(model.source)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = model.member
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
