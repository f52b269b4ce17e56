package workbook

import (
	"context"
	"errors"
)

var (
	// ErrBusy is returned when the advisory lock cannot be acquired
	// within the configured timeout, or the document is held open by an
	// external application. Callers may retry.
	ErrBusy = errors.New("workbook is busy")

	// ErrValidationFailed is returned when a staged write fails the
	// post-write integrity checks and was rolled back. The committed
	// document is unchanged.
	ErrValidationFailed = errors.New("workbook validation failed")
)

// Session is one edit session against a single copy of the reservation
// workbook. Rows and columns are 1-based, matching spreadsheet
// coordinates. Mutations become visible to other sessions only after
// Save.
type Session interface {
	SheetNames() []string
	HasSheet(name string) bool
	// Rows returns the sheet contents as a row-major string matrix.
	// Index [r-1][c-1] addresses row r, column c; short rows are legal.
	Rows(sheet string) ([][]string, error)
	Cell(sheet string, col, row int) (string, error)
	SetCell(sheet string, col, row int, value string) error
	ClearCell(sheet string, col, row int) error
	// EnsureSheet creates the sheet with the given header row when it
	// does not exist yet.
	EnsureSheet(name string, header []string) error
	AppendRow(sheet string, values []string) error
	Save() error
	Close() error
}

// Backend opens edit sessions against a workbook target: a file path
// for the direct-file backend, a spreadsheet ID for the automation
// backend.
type Backend interface {
	Name() string
	// InPlace reports whether edits reach the live document directly.
	// The transaction manager skips the stage/validate/swap cycle for
	// in-place backends; the hosting application owns durability.
	InPlace() bool
	Begin(ctx context.Context, target string) (Session, error)
}

// Outcome is the terminal state of one write transaction.
type Outcome int

const (
	Failed Outcome = iota
	RolledBack
	Committed
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "failed"
	}
}

// Result describes how a write transaction ended.
type Result struct {
	Outcome    Outcome
	BackupPath string
}
