package sorter

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockDirName holds one lock file per project folder below the output dir.
const lockDirName = ".stlpipe-locks"

const lockRetryDelay = 25 * time.Millisecond

// lockProject serializes writers of outputDir/stem. flock(2) locks are held
// per open file, so concurrent jobs in one process exclude each other the
// same way a watch daemon and a manual run do.
func lockProject(ctx context.Context, outputDir, stem string) (func(), error) {
	dir := filepath.Join(outputDir, lockDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, writeFailure(dir, err)
	}
	lock := flock.New(filepath.Join(dir, stem+".lock"))
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, writeFailure(lock.Path(), err)
	}
	return func() { _ = lock.Unlock() }, nil
}
