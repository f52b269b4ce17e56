package workbook

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"demoki/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func makeWorkbookFile(t *testing.T, dir string) string {
	t.Helper()

	f := excelize.NewFile()
	_, err := f.NewSheet("data")
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr("data", "A1", "original"))
	require.NoError(t, f.DeleteSheet("Sheet1"))

	path := filepath.Join(dir, "wb.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func newTestManager(t *testing.T, path string, ratio float64) *Manager {
	t.Helper()

	logger := zerolog.Nop()
	cfg := config.WorkbookConfig{
		Backend:        config.BackendFile,
		Path:           path,
		LockTimeout:    2 * time.Second,
		SizeDeltaRatio: ratio,
	}
	return NewManager(NewFileBackend(), cfg, filepath.Join(filepath.Dir(path), "backups"), &logger)
}

func TestUpdateCommit(t *testing.T) {
	path := makeWorkbookFile(t, t.TempDir())
	m := newTestManager(t, path, 0.9)

	res, err := m.Update(context.Background(), func(sess Session) error {
		return sess.SetCell("data", 1, 1, "updated")
	})
	require.NoError(t, err)
	assert.Equal(t, Committed, res.Outcome)
	require.NotEmpty(t, res.BackupPath)

	// Live document carries the write.
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	value, err := f.GetCellValue("data", "A1")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "updated", value)

	// Backup carries the pre-commit state.
	b, err := excelize.OpenFile(res.BackupPath)
	require.NoError(t, err)
	value, err = b.GetCellValue("data", "A1")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Equal(t, "original", value)
}

func TestUpdateFnErrorLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := makeWorkbookFile(t, dir)
	m := newTestManager(t, path, 0.9)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	boom := errors.New("boom")
	res, err := m.Update(context.Background(), func(sess Session) error {
		if err := sess.SetCell("data", 1, 1, "half-written"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, res.Outcome)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after), "workbook must be byte-identical after an aborted update")

	// No stage files or backups left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "leftover stage file %s", e.Name())
	}
	_, err = os.Stat(filepath.Join(dir, "backups"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateRollbackOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := makeWorkbookFile(t, dir)

	// A committed write first, so a backup exists before the failure.
	m := newTestManager(t, path, 0.5)
	committed, err := m.Update(context.Background(), func(sess Session) error {
		return sess.SetCell("data", 1, 2, "committed")
	})
	require.NoError(t, err)
	require.NotEmpty(t, committed.BackupPath)

	// Inflate the committed file with trailing padding. The zip reader
	// tolerates it, but the staged save rewrites a clean container, so
	// the size collapses past the allowed delta and validation rejects
	// the stage.
	pad := make([]byte, 1<<20)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(pad)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err := m.Update(context.Background(), func(sess Session) error {
		return sess.SetCell("data", 1, 1, "updated")
	})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, RolledBack, res.Outcome)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after), "workbook must be byte-identical after rollback")

	// The pre-existing backup survives the failed write and still opens.
	b, err := excelize.OpenFile(committed.BackupPath)
	require.NoError(t, err)
	value, err := b.GetCellValue("data", "A1")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Equal(t, "original", value)
}

func TestUpdateBusyWhenLocked(t *testing.T) {
	path := makeWorkbookFile(t, t.TempDir())
	require.NoError(t, os.Mkdir(path+".lock", 0o755))

	logger := zerolog.Nop()
	cfg := config.WorkbookConfig{
		Backend:        config.BackendFile,
		Path:           path,
		LockTimeout:    300 * time.Millisecond,
		SizeDeltaRatio: 0.9,
	}
	m := NewManager(NewFileBackend(), cfg, "", &logger)

	res, err := m.Update(context.Background(), func(sess Session) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, Failed, res.Outcome)
}

func TestUpdateBusyWhenOwnerFilePresent(t *testing.T) {
	dir := t.TempDir()
	path := makeWorkbookFile(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$wb.xlsx"), nil, 0o644))

	logger := zerolog.Nop()
	cfg := config.WorkbookConfig{
		Backend:        config.BackendFile,
		Path:           path,
		LockTimeout:    300 * time.Millisecond,
		SizeDeltaRatio: 0.9,
	}
	m := NewManager(NewFileBackend(), cfg, "", &logger)

	res, err := m.Update(context.Background(), func(sess Session) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, Failed, res.Outcome)
}

func TestViewDoesNotModify(t *testing.T) {
	path := makeWorkbookFile(t, t.TempDir())
	m := newTestManager(t, path, 0.9)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = m.View(context.Background(), func(sess Session) error {
		value, err := sess.Cell("data", 1, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, "original", value)
		return nil
	})
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
}

// inPlaceBackend fakes a backend whose host applies edits directly, as
// the live-spreadsheet backend does.
type inPlaceBackend struct {
	session *inPlaceSession
}

func (b *inPlaceBackend) Name() string { return "fake" }

func (b *inPlaceBackend) InPlace() bool { return true }

func (b *inPlaceBackend) Begin(ctx context.Context, target string) (Session, error) {
	return b.session, nil
}

type inPlaceSession struct {
	saved  bool
	closed bool
	writes int
}

func (s *inPlaceSession) SheetNames() []string { return []string{"data"} }

func (s *inPlaceSession) HasSheet(name string) bool { return name == "data" }

func (s *inPlaceSession) Rows(sheet string) ([][]string, error) { return nil, nil }

func (s *inPlaceSession) Cell(sheet string, col, row int) (string, error) {
	return "", nil
}

func (s *inPlaceSession) SetCell(sheet string, col, row int, value string) error {
	s.writes++
	return nil
}

func (s *inPlaceSession) ClearCell(sheet string, col, row int) error {
	s.writes++
	return nil
}

func (s *inPlaceSession) EnsureSheet(name string, header []string) error { return nil }

func (s *inPlaceSession) AppendRow(sheet string, values []string) error { return nil }

func (s *inPlaceSession) Save() error { s.saved = true; return nil }

func (s *inPlaceSession) Close() error { s.closed = true; return nil }

func TestUpdateInPlaceCommitsOnSave(t *testing.T) {
	logger := zerolog.Nop()
	backend := &inPlaceBackend{session: &inPlaceSession{}}
	cfg := config.WorkbookConfig{
		Backend:       config.BackendSheets,
		SpreadsheetID: "sheet-id",
		LockDir:       filepath.Join(t.TempDir(), "wb.lock"),
		LockTimeout:   time.Second,
	}
	m := NewManager(backend, cfg, "", &logger)

	res, err := m.Update(context.Background(), func(sess Session) error {
		return sess.SetCell("data", 1, 1, "x")
	})
	require.NoError(t, err)
	assert.Equal(t, Committed, res.Outcome)
	assert.Empty(t, res.BackupPath)
	assert.True(t, backend.session.saved)
	assert.True(t, backend.session.closed)
}

func TestUpdateInPlaceFnErrorSkipsSave(t *testing.T) {
	logger := zerolog.Nop()
	backend := &inPlaceBackend{session: &inPlaceSession{}}
	cfg := config.WorkbookConfig{
		Backend:       config.BackendSheets,
		SpreadsheetID: "sheet-id",
		LockDir:       filepath.Join(t.TempDir(), "wb.lock"),
		LockTimeout:   time.Second,
	}
	m := NewManager(backend, cfg, "", &logger)

	boom := errors.New("boom")
	res, err := m.Update(context.Background(), func(sess Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, res.Outcome)
	assert.False(t, backend.session.saved)
	assert.True(t, backend.session.closed)
}
