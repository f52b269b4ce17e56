package workbook

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"demoki/internal/config"
	"demoki/internal/metrics"

	"github.com/rs/zerolog"
)

// Manager wraps a Backend with the write transaction protocol: advisory
// locking, staged mutation, post-write validation with rollback, backup
// rotation and an atomic rename into place. Reads go through the same
// lock so they only ever observe the committed document.
type Manager struct {
	backend        Backend
	target         string
	lock           *Lock
	sizeDeltaRatio float64
	backupDir      string
	logger         *zerolog.Logger
}

func NewManager(backend Backend, cfg config.WorkbookConfig, backupDir string, logger *zerolog.Logger) *Manager {
	target := cfg.Path
	if backend.InPlace() {
		target = cfg.SpreadsheetID
	}

	lockDir := cfg.LockDir
	if lockDir == "" {
		lockDir = cfg.Path + ".lock"
		if backend.InPlace() {
			lockDir = filepath.Join(os.TempDir(), "demoki-"+cfg.SpreadsheetID+".lock")
		}
	}

	var probe func() bool
	if !backend.InPlace() {
		probe = func() bool { return ownerFilePresent(cfg.Path) }
	}

	return &Manager{
		backend:        backend,
		target:         target,
		lock:           NewLock(lockDir, cfg.LockTimeout, probe),
		sizeDeltaRatio: cfg.SizeDeltaRatio,
		backupDir:      backupDir,
		logger:         logger,
	}
}

// View runs fn against a read session on the committed document.
func (m *Manager) View(ctx context.Context, fn func(Session) error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.lock.Release()

	sess, err := m.backend.Begin(ctx, m.target)
	if err != nil {
		return err
	}
	defer sess.Close()

	return fn(sess)
}

// Update runs fn inside one write transaction. For the file backend the
// mutation is applied to a staged copy which replaces the original only
// after validation; for in-place backends the hosting application
// receives the batched edits on commit. An error from fn aborts with no
// effect on the committed document.
func (m *Manager) Update(ctx context.Context, fn func(Session) error) (Result, error) {
	if err := m.acquire(ctx); err != nil {
		return m.done(Result{Outcome: Failed}, err)
	}
	defer m.lock.Release()

	if m.backend.InPlace() {
		return m.done(m.updateInPlace(ctx, fn))
	}
	return m.done(m.updateStaged(ctx, fn))
}

func (m *Manager) done(res Result, err error) (Result, error) {
	metrics.IncCommit(res.Outcome.String())
	return res, err
}

func (m *Manager) acquire(ctx context.Context) error {
	started := time.Now()
	err := m.lock.Acquire(ctx)
	metrics.ObserveLockWait(time.Since(started))
	return err
}

func (m *Manager) updateInPlace(ctx context.Context, fn func(Session) error) (Result, error) {
	sess, err := m.backend.Begin(ctx, m.target)
	if err != nil {
		return Result{Outcome: Failed}, err
	}
	defer sess.Close()

	if err := fn(sess); err != nil {
		return Result{Outcome: Failed}, err
	}
	if err := sess.Save(); err != nil {
		return Result{Outcome: Failed}, err
	}
	return Result{Outcome: Committed}, nil
}

func (m *Manager) updateStaged(ctx context.Context, fn func(Session) error) (Result, error) {
	origInfo, err := os.Stat(m.target)
	if err != nil {
		return Result{Outcome: Failed}, fmt.Errorf("stat workbook: %w", err)
	}

	stage, err := m.stageCopy()
	if err != nil {
		return Result{Outcome: Failed}, err
	}
	defer os.Remove(stage)

	sess, err := m.backend.Begin(ctx, stage)
	if err != nil {
		return Result{Outcome: Failed}, err
	}
	sheetsBefore := sess.SheetNames()

	if err := fn(sess); err != nil {
		sess.Close()
		return Result{Outcome: Failed}, err
	}
	if err := sess.Save(); err != nil {
		sess.Close()
		return Result{Outcome: Failed}, fmt.Errorf("save staged workbook: %w", err)
	}
	if err := sess.Close(); err != nil {
		return Result{Outcome: Failed}, fmt.Errorf("close staged workbook: %w", err)
	}

	if err := m.validateStage(ctx, stage, sheetsBefore, origInfo.Size()); err != nil {
		m.logger.Error().Err(err).Str("stage", stage).Msg("staged write failed validation, rolling back")
		return Result{Outcome: RolledBack}, err
	}

	backupPath, err := m.rotateBackup()
	if err != nil {
		return Result{Outcome: Failed}, err
	}
	if err := os.Rename(stage, m.target); err != nil {
		// The original has already been moved aside; put it back so a
		// committed document always exists.
		if backupPath != "" {
			_ = os.Rename(backupPath, m.target)
		}
		return Result{Outcome: Failed}, fmt.Errorf("swap staged workbook: %w", err)
	}

	return Result{Outcome: Committed, BackupPath: backupPath}, nil
}

func (m *Manager) stageCopy() (string, error) {
	dir, base := filepath.Split(m.target)
	// Keep the workbook extension last so the backend recognizes the
	// staged file's format on save.
	ext := filepath.Ext(base)
	stage := filepath.Join(dir, fmt.Sprintf(".%s.stage-%d%s", strings.TrimSuffix(base, ext), os.Getpid(), ext))

	src, err := os.Open(m.target)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(stage)
	if err != nil {
		return "", fmt.Errorf("create stage: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(stage)
		return "", fmt.Errorf("copy to stage: %w", err)
	}
	return stage, nil
}

// validateStage checks the staged file before it replaces the original:
// the container must still open, every sheet present before the write
// must still be present, and the size must not deviate from the
// original by more than the configured ratio.
func (m *Manager) validateStage(ctx context.Context, stage string, sheetsBefore []string, origSize int64) error {
	info, err := os.Stat(stage)
	if err != nil {
		return fmt.Errorf("%w: stat stage: %v", ErrValidationFailed, err)
	}
	if origSize > 0 {
		delta := float64(info.Size()-origSize) / float64(origSize)
		if delta < 0 {
			delta = -delta
		}
		if delta > m.sizeDeltaRatio {
			return fmt.Errorf("%w: size delta %.2f exceeds ratio %.2f", ErrValidationFailed, delta, m.sizeDeltaRatio)
		}
	}

	check, err := m.backend.Begin(ctx, stage)
	if err != nil {
		return fmt.Errorf("%w: reopen stage: %v", ErrValidationFailed, err)
	}
	defer check.Close()

	for _, name := range sheetsBefore {
		if !check.HasSheet(name) {
			return fmt.Errorf("%w: sheet %q missing after write", ErrValidationFailed, name)
		}
	}
	return nil
}

// rotateBackup moves the committed document aside as a timestamped
// backup and returns its path.
func (m *Manager) rotateBackup() (string, error) {
	dir := m.backupDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(m.target), "backups")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	backupPath := filepath.Join(dir, fmt.Sprintf("%s.%s.bak", filepath.Base(m.target), time.Now().Format("20060102_150405.000")))
	if err := os.Rename(m.target, backupPath); err != nil {
		return "", fmt.Errorf("rotate backup: %w", err)
	}
	return backupPath, nil
}
