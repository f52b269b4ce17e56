package workbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const lockPollInterval = 100 * time.Millisecond

// Lock is a cross-process advisory lock backed by a marker directory.
// Mkdir is atomic on every platform we care about, so whoever creates
// the directory owns the lock.
type Lock struct {
	dir     string
	timeout time.Duration
	// probe reports additional busy conditions, e.g. the document being
	// held open by an external spreadsheet application.
	probe func() bool
}

func NewLock(dir string, timeout time.Duration, probe func() bool) *Lock {
	return &Lock{dir: dir, timeout: timeout, probe: probe}
}

// Acquire polls until the lock is free or the timeout elapses, in which
// case it fails with ErrBusy rather than blocking indefinitely.
func (l *Lock) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		busy := l.probe != nil && l.probe()
		if !busy {
			err := os.Mkdir(l.dir, 0o755)
			if err == nil {
				return nil
			}
			if !os.IsExist(err) {
				return fmt.Errorf("acquire lock %s: %w", l.dir, err)
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock %s not acquired within %s: %w", l.dir, l.timeout, ErrBusy)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *Lock) Release() {
	_ = os.RemoveAll(l.dir)
}

// ownerFilePresent reports whether a spreadsheet application currently
// holds the document open. Excel drops a "~$name.xlsx" owner file next
// to the workbook for the lifetime of the editing session.
func ownerFilePresent(path string) bool {
	dir, base := filepath.Split(path)
	marker := filepath.Join(dir, "~$"+strings.TrimPrefix(base, "~$"))
	_, err := os.Stat(marker)
	return err == nil
}
