package workbook

import (
	"context"
	"fmt"
	"os"
	"time"

	"demoki/internal/worker"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsBackend delegates workbook edits to a live Google Sheets
// spreadsheet. Every transaction gets its own service session, torn
// down on Close; edits are batched locally and flushed in one request
// on Save. Styling, formulas and other document features survive
// because the hosting application applies the edits itself.
type SheetsBackend struct {
	credentialsFile string
	retry           worker.RetryPolicy
}

func NewSheetsBackend(credentialsFile string) *SheetsBackend {
	return &SheetsBackend{
		credentialsFile: credentialsFile,
		retry: worker.RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2,
		},
	}
}

func (b *SheetsBackend) Name() string { return "sheets" }

func (b *SheetsBackend) InPlace() bool { return true }

// Begin initializes the automation session: service-account client,
// Sheets service, and the spreadsheet's sheet inventory.
func (b *SheetsBackend) Begin(ctx context.Context, target string) (Session, error) {
	credentialsJSON, err := os.ReadFile(b.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	meta, err := srv.Spreadsheets.Get(target).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("load spreadsheet %s: %w", target, err)
	}

	titles := make([]string, 0, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}

	return &sheetsSession{
		ctx:      ctx,
		srv:      srv,
		id:       target,
		titles:   titles,
		rowCache: make(map[string][][]string),
		appends:  make(map[string][][]interface{}),
		retry:    b.retry,
	}, nil
}

type sheetsSession struct {
	ctx      context.Context
	srv      *sheets.Service
	id       string
	titles   []string
	rowCache map[string][][]string
	pending  []*sheets.ValueRange
	appends  map[string][][]interface{}
	retry    worker.RetryPolicy
}

func (s *sheetsSession) SheetNames() []string {
	return append([]string(nil), s.titles...)
}

func (s *sheetsSession) HasSheet(name string) bool {
	for _, t := range s.titles {
		if t == name {
			return true
		}
	}
	return false
}

func (s *sheetsSession) Rows(sheet string) ([][]string, error) {
	if rows, ok := s.rowCache[sheet]; ok {
		return rows, nil
	}

	resp, err := s.srv.Spreadsheets.Values.Get(s.id, quoteRange(sheet)).Context(s.ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}

	s.rowCache[sheet] = rows
	return rows, nil
}

func (s *sheetsSession) Cell(sheet string, col, row int) (string, error) {
	rows, err := s.Rows(sheet)
	if err != nil {
		return "", err
	}
	if row > len(rows) || col > len(rows[row-1]) {
		return "", nil
	}
	return rows[row-1][col-1], nil
}

func (s *sheetsSession) SetCell(sheet string, col, row int, value string) error {
	s.pending = append(s.pending, &sheets.ValueRange{
		Range:  fmt.Sprintf("%s!%s%d", quoteSheet(sheet), columnName(col), row),
		Values: [][]interface{}{{value}},
	})
	s.setCached(sheet, col, row, value)
	return nil
}

func (s *sheetsSession) ClearCell(sheet string, col, row int) error {
	return s.SetCell(sheet, col, row, "")
}

// EnsureSheet creates missing sheets eagerly: the AddSheet structural
// request cannot ride in the values batch.
func (s *sheetsSession) EnsureSheet(name string, header []string) error {
	if s.HasSheet(name) {
		return nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := s.srv.Spreadsheets.BatchUpdate(s.id, req).Context(s.ctx).Do(); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	s.titles = append(s.titles, name)
	s.rowCache[name] = nil
	for i, h := range header {
		if err := s.SetCell(name, i+1, 1, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *sheetsSession) AppendRow(sheet string, values []string) error {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	s.appends[sheet] = append(s.appends[sheet], row)

	rows, err := s.Rows(sheet)
	if err != nil {
		return err
	}
	s.rowCache[sheet] = append(rows, append([]string(nil), values...))
	return nil
}

// Save flushes all batched edits to the live spreadsheet, retrying
// transient API failures with backoff.
func (s *sheetsSession) Save() error {
	if len(s.pending) > 0 {
		req := &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             s.pending,
		}
		err := s.withRetry(func() error {
			_, err := s.srv.Spreadsheets.Values.BatchUpdate(s.id, req).Context(s.ctx).Do()
			return err
		})
		if err != nil {
			return fmt.Errorf("flush cell updates: %w", err)
		}
		s.pending = nil
	}

	for sheet, rows := range s.appends {
		vr := &sheets.ValueRange{Values: rows}
		err := s.withRetry(func() error {
			_, err := s.srv.Spreadsheets.Values.Append(s.id, quoteRange(sheet), vr).
				ValueInputOption("RAW").
				InsertDataOption("INSERT_ROWS").
				Context(s.ctx).Do()
			return err
		})
		if err != nil {
			return fmt.Errorf("append rows to %s: %w", sheet, err)
		}
	}
	s.appends = make(map[string][][]interface{})

	return nil
}

func (s *sheetsSession) Close() error {
	s.srv = nil
	s.rowCache = nil
	return nil
}

func (s *sheetsSession) withRetry(fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt > s.retry.MaxRetries {
			return err
		}
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-time.After(s.retry.NextDelay(attempt)):
		}
	}
}

func (s *sheetsSession) setCached(sheet string, col, row int, value string) {
	rows := s.rowCache[sheet]
	for len(rows) < row {
		rows = append(rows, nil)
	}
	for len(rows[row-1]) < col {
		rows[row-1] = append(rows[row-1], "")
	}
	rows[row-1][col-1] = value
	s.rowCache[sheet] = rows
}

func quoteSheet(name string) string {
	return "'" + name + "'"
}

func quoteRange(name string) string {
	return quoteSheet(name)
}

// columnName converts a 1-based column index to A1 notation.
func columnName(col int) string {
	var name []byte
	for col > 0 {
		col--
		name = append([]byte{byte('A' + col%26)}, name...)
		col /= 26
	}
	return string(name)
}
