package extract

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// joinSplitVolumes concatenates the byte-split set opened by first into a
// single file under a fresh directory inside dir. The joined file is named
// after the set, so pack.zip.001 becomes pack.zip and keeps its extension
// check. The caller removes the returned directory.
func joinSplitVolumes(ctx context.Context, first, dir string) (joined, tmpDir string, err error) {
	volumes, err := Volumes(first)
	if err != nil {
		return "", "", newError(ReasonCorruptArchive, first, err)
	}
	volumes, err = OrderVolumes(volumes)
	if err != nil {
		return "", "", newError(ReasonCorruptArchive, first, err)
	}
	set, _, _ := VolumeIndex(filepath.Base(first))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", newError(ReasonWriteFailure, first, err)
	}
	tmpDir, err = os.MkdirTemp(dir, ".join-*")
	if err != nil {
		return "", "", newError(ReasonWriteFailure, first, err)
	}
	joined = filepath.Join(tmpDir, set)
	out, err := os.Create(joined)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", newError(ReasonWriteFailure, first, err)
	}
	for _, volume := range volumes {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = appendFile(out, volume); err != nil {
			err = newError(ReasonWriteFailure, first, err)
			break
		}
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = newError(ReasonWriteFailure, first, closeErr)
	}
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	return joined, tmpDir, nil
}

func appendFile(out io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(out, in)
	return err
}
