package engine

import (
	"context"
	"fmt"
	"time"

	"demoki/internal/events"
	"demoki/internal/metrics"
	"demoki/internal/models"
	"demoki/internal/workbook"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine implements availability search, booking, cancellation and
// listing over the reservation workbook. Every operation is one
// transaction against the persistence layer; an error anywhere before
// the single commit point leaves the document untouched.
type Engine struct {
	store    *workbook.Manager
	eventBus *events.EventBus
	now      func() time.Time
	newID    func() string
	logger   *zerolog.Logger
}

func NewEngine(store *workbook.Manager, eventBus *events.EventBus, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		eventBus: eventBus,
		now:      time.Now,
		newID:    func() string { return uuid.New().String()[:8] },
		logger:   logger,
	}
}

// FindAvailableDevice returns the first device of the requested type
// free on every date of [start, end]. A single device must cover the
// whole range; for ranges crossing month boundaries every month sheet
// must exist, otherwise the search fails without partial allocation.
func (e *Engine) FindAvailableDevice(ctx context.Context, deviceType string, start, end time.Time) (string, error) {
	var device string
	err := e.store.View(ctx, func(sess workbook.Session) error {
		found, err := findAvailable(sess, deviceType, start, end)
		if err != nil {
			return err
		}
		device = found
		return nil
	})
	return device, err
}

func findAvailable(sess workbook.Session, deviceType string, start, end time.Time) (string, error) {
	spans := SplitByPeriod(start, end)

	sheetRows := make(map[string][][]string, len(spans))
	for _, span := range spans {
		if !sess.HasSheet(span.Sheet) {
			return "", fmt.Errorf("%w: %s", ErrSheetNotFound, span.Sheet)
		}
		rows, err := sess.Rows(span.Sheet)
		if err != nil {
			return "", err
		}
		sheetRows[span.Sheet] = rows
	}

	// Candidates come from the start-month sheet, in row order.
	candidates := devicesByType(sheetRows[spans[0].Sheet], deviceType)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: type %q", ErrNoDevice, deviceType)
	}

	for _, device := range candidates {
		free := true
		for _, span := range spans {
			rows := sheetRows[span.Sheet]
			row, ok := deviceRow(rows, device)
			if !ok {
				return "", fmt.Errorf("%w: %s in sheet %s", ErrDeviceNotFound, device, span.Sheet)
			}
			cols, err := dayColumns(rows, span.Start.Day(), span.End.Day())
			if err != nil {
				return "", err
			}
			for _, col := range cols {
				if cellAt(rows, col, row) != "" {
					free = false
					break
				}
			}
			if !free {
				break
			}
		}
		if free {
			return device, nil
		}
	}

	return "", fmt.Errorf("%w: type %q between %s and %s", ErrNoDevice, deviceType,
		start.Format(models.DateLayout), end.Format(models.DateLayout))
}

// Book reserves the device for every date of [start, end], tagging each
// affected cell across all month sheets and appending one log row that
// carries the original unsplit range. All writes land as one persisted
// unit.
func (e *Engine) Book(ctx context.Context, device string, start, end time.Time, user models.UserInfo) (string, error) {
	if end.Before(start) {
		return "", fmt.Errorf("%w: start %s after end %s", ErrConflict,
			start.Format(models.DateLayout), end.Format(models.DateLayout))
	}

	id := e.newID()
	marker := models.MarkerPrefix + id

	_, err := e.store.Update(ctx, func(sess workbook.Session) error {
		spans := SplitByPeriod(start, end)

		type cellRef struct {
			sheet    string
			col, row int
		}
		var cells []cellRef

		// Full availability pass before the first write: a booking must
		// never leave a partially tagged calendar.
		for _, span := range spans {
			if !sess.HasSheet(span.Sheet) {
				return fmt.Errorf("%w: %s", ErrSheetNotFound, span.Sheet)
			}
			rows, err := sess.Rows(span.Sheet)
			if err != nil {
				return err
			}
			row, ok := deviceRow(rows, device)
			if !ok {
				return fmt.Errorf("%w: %s in sheet %s", ErrDeviceNotFound, device, span.Sheet)
			}
			cols, err := dayColumns(rows, span.Start.Day(), span.End.Day())
			if err != nil {
				return err
			}
			for _, col := range cols {
				if cellAt(rows, col, row) != "" {
					return fmt.Errorf("%w: %s on %s", ErrConflict, device, span.Sheet)
				}
				cells = append(cells, cellRef{sheet: span.Sheet, col: col, row: row})
			}
		}

		for _, c := range cells {
			if err := sess.SetCell(c.sheet, c.col, c.row, marker); err != nil {
				return err
			}
		}

		if err := sess.EnsureSheet(models.LogSheet, models.LogHeaders); err != nil {
			return err
		}
		return sess.AppendRow(models.LogSheet, []string{
			id,
			e.now().Format(models.TimestampLayout),
			user.Name,
			user.Extension,
			user.EmployeeID,
			device,
			start.Format(models.DateLayout),
			end.Format(models.DateLayout),
			models.StatusActive,
		})
	})
	if err != nil {
		return "", err
	}

	metrics.IncReservations()
	e.publish(events.EventReservationCreated, models.Reservation{
		ID: id, Device: device, Name: user.Name, Extension: user.Extension,
		EmployeeID: user.EmployeeID, Start: start, End: end, Status: models.StatusActive,
	})
	e.logger.Info().Str("reservation_id", id).Str("device", device).
		Str("start", start.Format(models.DateLayout)).
		Str("end", end.Format(models.DateLayout)).
		Msg("reservation booked")

	return id, nil
}

// Cancel clears the reservation's grid cells and flips the log row to
// cancelled. Re-cancelling reports ErrAlreadyCancelled and performs no
// mutation; the log row itself is never removed.
func (e *Engine) Cancel(ctx context.Context, reservationID string) error {
	var cancelled models.Reservation

	_, err := e.store.Update(ctx, func(sess workbook.Session) error {
		if !sess.HasSheet(models.LogSheet) {
			return fmt.Errorf("%w: %s", ErrReservationNotFound, reservationID)
		}
		logRows, err := sess.Rows(models.LogSheet)
		if err != nil {
			return err
		}

		logRow := 0
		var res models.Reservation
		for r := models.LogHeaderRow + 1; r <= len(logRows); r++ {
			if cellAt(logRows, models.LogColID, r) != reservationID {
				continue
			}
			parsed, ok := reservationFromRow(logRows[r-1])
			if !ok {
				return fmt.Errorf("%w: malformed log row for %s", ErrReservationNotFound, reservationID)
			}
			logRow, res = r, parsed
			break
		}
		if logRow == 0 {
			return fmt.Errorf("%w: %s", ErrReservationNotFound, reservationID)
		}
		if res.Status == models.StatusCancelled {
			return fmt.Errorf("%w: %s", ErrAlreadyCancelled, reservationID)
		}

		marker := models.MarkerPrefix + res.ID
		for _, span := range SplitByPeriod(res.Start, res.End) {
			if !sess.HasSheet(span.Sheet) {
				return fmt.Errorf("%w: %s", ErrSheetNotFound, span.Sheet)
			}
			rows, err := sess.Rows(span.Sheet)
			if err != nil {
				return err
			}
			row, ok := deviceRow(rows, res.Device)
			if !ok {
				return fmt.Errorf("%w: %s in sheet %s", ErrDeviceNotFound, res.Device, span.Sheet)
			}

			// Clear only cells carrying this reservation's marker, then
			// sweep the rest of the row for residual markers.
			maxCol := 0
			if len(rows) >= models.HeaderRow {
				maxCol = len(rows[models.HeaderRow-1])
			}
			if len(rows) >= row && len(rows[row-1]) > maxCol {
				maxCol = len(rows[row-1])
			}
			for col := models.DayStartCol; col <= maxCol; col++ {
				if cellAt(rows, col, row) == marker {
					if err := sess.ClearCell(span.Sheet, col, row); err != nil {
						return err
					}
				}
			}
		}

		cancelled = res
		cancelled.Status = models.StatusCancelled
		return sess.SetCell(models.LogSheet, models.LogColStatus, logRow, models.StatusCancelled)
	})
	if err != nil {
		return err
	}

	metrics.IncCancellations()
	e.publish(events.EventReservationCancelled, cancelled)
	e.logger.Info().Str("reservation_id", reservationID).Msg("reservation cancelled")
	return nil
}

// ListUserBookings returns the caller's reservations in log order,
// oldest first, all statuses, capped at MaxListEntries. A row matches
// when any one of name, extension or employee id matches.
func (e *Engine) ListUserBookings(ctx context.Context, user models.UserInfo) ([]models.Reservation, error) {
	return e.list(ctx, user, false)
}

// ListCancellableBookings is ListUserBookings restricted to active
// reservations; it feeds the cancellation sub-dialog.
func (e *Engine) ListCancellableBookings(ctx context.Context, user models.UserInfo) ([]models.Reservation, error) {
	return e.list(ctx, user, true)
}

func (e *Engine) list(ctx context.Context, user models.UserInfo, activeOnly bool) ([]models.Reservation, error) {
	var out []models.Reservation
	err := e.store.View(ctx, func(sess workbook.Session) error {
		if !sess.HasSheet(models.LogSheet) {
			return nil
		}
		rows, err := sess.Rows(models.LogSheet)
		if err != nil {
			return err
		}
		for r := models.LogHeaderRow + 1; r <= len(rows) && len(out) < models.MaxListEntries; r++ {
			res, ok := reservationFromRow(rows[r-1])
			if !ok {
				continue
			}
			if activeOnly && !res.Active() {
				continue
			}
			if res.Matches(user) {
				out = append(out, res)
			}
		}
		return nil
	})
	return out, err
}

func reservationFromRow(row []string) (models.Reservation, bool) {
	get := func(col int) string {
		if col > len(row) {
			return ""
		}
		return row[col-1]
	}

	res := models.Reservation{
		ID:         get(models.LogColID),
		Name:       get(models.LogColName),
		Extension:  get(models.LogColExtension),
		EmployeeID: get(models.LogColEmployeeID),
		Device:     get(models.LogColDevice),
		Status:     get(models.LogColStatus),
	}
	if res.ID == "" {
		return models.Reservation{}, false
	}

	var err error
	if res.CreatedAt, err = time.Parse(models.TimestampLayout, get(models.LogColCreatedAt)); err != nil {
		res.CreatedAt = time.Time{}
	}
	if res.Start, err = time.Parse(models.DateLayout, get(models.LogColStart)); err != nil {
		return models.Reservation{}, false
	}
	if res.End, err = time.Parse(models.DateLayout, get(models.LogColEnd)); err != nil {
		return models.Reservation{}, false
	}
	return res, true
}

func (e *Engine) publish(eventType string, res models.Reservation) {
	if e.eventBus == nil {
		return
	}
	payload := events.ReservationEventPayload{
		ReservationID: res.ID,
		Device:        res.Device,
		Name:          res.Name,
		Extension:     res.Extension,
		EmployeeID:    res.EmployeeID,
		Start:         res.Start,
		End:           res.End,
		Status:        res.Status,
	}
	if err := e.eventBus.PublishJSON(eventType, payload); err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Str("reservation_id", res.ID).Msg("publish event error")
	}
}
