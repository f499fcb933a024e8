package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"stlpipe/internal/textutil"
)

const maxNameTokenLen = 48

// Workspace is a scratch directory owned by exactly one job run.
type Workspace struct {
	Path string
}

// Allocate creates <root>/<sanitized-name>-<key-hash8>-<run-token>. The run
// token is a fresh uuid so concurrent or repeated runs never share a directory.
func Allocate(root, name, key string) (Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Workspace{}, fmt.Errorf("allocate workspace: scratch root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("allocate workspace: %w", err)
	}
	path := filepath.Join(root, WorkspaceName(name, key, uuid.NewString()))
	if err := os.Mkdir(path, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("allocate workspace: %w", err)
	}
	return Workspace{Path: path}, nil
}

// WorkspaceName builds the directory name for a workspace.
func WorkspaceName(name, key, token string) string {
	sum := sha256.Sum256([]byte(key))
	nameToken := textutil.SanitizeToken(textutil.Stem(name))
	if len(nameToken) > maxNameTokenLen {
		nameToken = nameToken[:maxNameTokenLen]
	}
	return nameToken + "-" + hex.EncodeToString(sum[:4]) + "-" + token
}

// ExtractDir is where archive contents are unpacked.
func (w Workspace) ExtractDir() string {
	return filepath.Join(w.Path, "extract")
}

// Remove deletes the workspace and everything below it.
func (w Workspace) Remove() error {
	if w.Path == "" {
		return nil
	}
	return os.RemoveAll(w.Path)
}
