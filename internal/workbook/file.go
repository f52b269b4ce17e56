package workbook

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// FileBackend edits the serialized .xlsx form of the workbook directly.
type FileBackend struct{}

func NewFileBackend() *FileBackend {
	return &FileBackend{}
}

func (b *FileBackend) Name() string { return "file" }

func (b *FileBackend) InPlace() bool { return false }

func (b *FileBackend) Begin(ctx context.Context, target string) (Session, error) {
	f, err := excelize.OpenFile(target)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", target, err)
	}
	return &fileSession{f: f}, nil
}

type fileSession struct {
	f *excelize.File
}

func (s *fileSession) SheetNames() []string {
	return s.f.GetSheetList()
}

func (s *fileSession) HasSheet(name string) bool {
	idx, err := s.f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (s *fileSession) Rows(sheet string) ([][]string, error) {
	rows, err := s.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (s *fileSession) Cell(sheet string, col, row int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return s.f.GetCellValue(sheet, cell)
}

func (s *fileSession) SetCell(sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return s.f.SetCellStr(sheet, cell, value)
}

func (s *fileSession) ClearCell(sheet string, col, row int) error {
	return s.SetCell(sheet, col, row, "")
}

func (s *fileSession) EnsureSheet(name string, header []string) error {
	if s.HasSheet(name) {
		return nil
	}
	if _, err := s.f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	for i, h := range header {
		if err := s.SetCell(name, i+1, 1, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileSession) AppendRow(sheet string, values []string) error {
	rows, err := s.Rows(sheet)
	if err != nil {
		return err
	}
	next := len(rows) + 1
	for i, v := range values {
		if err := s.SetCell(sheet, i+1, next, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileSession) Save() error {
	return s.f.Save()
}

func (s *fileSession) Close() error {
	return s.f.Close()
}
