package engine

import (
	"fmt"
	"strconv"
	"strings"

	"demoki/internal/models"
)

// normalizeDayHeader parses one day-header cell into a day of month.
// Real workbooks mix plain numerals ("10"), day-suffixed values
// ("10日"), full-width digits ("１０") and numerals rendered as floats
// ("10.0").
func normalizeDayHeader(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "日")

	var b strings.Builder
	for _, r := range s {
		if r >= '０' && r <= '９' {
			r = '0' + (r - '０')
		}
		b.WriteRune(r)
	}
	s = b.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

func cellAt(rows [][]string, col, row int) string {
	if row > len(rows) {
		return ""
	}
	r := rows[row-1]
	if col > len(r) {
		return ""
	}
	return strings.TrimSpace(r[col-1])
}

// dayColumn finds the grid column holding the given day of month.
func dayColumn(rows [][]string, day int) (int, bool) {
	if len(rows) < models.HeaderRow {
		return 0, false
	}
	header := rows[models.HeaderRow-1]
	for col := models.DayStartCol; col <= len(header); col++ {
		if d, ok := normalizeDayHeader(header[col-1]); ok && d == day {
			return col, true
		}
	}
	return 0, false
}

// dayColumns resolves every day in [startDay, endDay] to its column.
func dayColumns(rows [][]string, startDay, endDay int) ([]int, error) {
	cols := make([]int, 0, endDay-startDay+1)
	for day := startDay; day <= endDay; day++ {
		col, ok := dayColumn(rows, day)
		if !ok {
			return nil, fmt.Errorf("%w: day %d", ErrDayNotFound, day)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// deviceRow finds the row carrying the device name in the device axis.
func deviceRow(rows [][]string, device string) (int, bool) {
	for row := models.DeviceStartRow; row <= len(rows); row++ {
		if cellAt(rows, models.DeviceCol, row) == device {
			return row, true
		}
	}
	return 0, false
}

// devicesByType lists devices whose name starts with the requested type
// prefix, in row order.
func devicesByType(rows [][]string, deviceType string) []string {
	var devices []string
	for row := models.DeviceStartRow; row <= len(rows); row++ {
		name := cellAt(rows, models.DeviceCol, row)
		if name != "" && strings.HasPrefix(name, deviceType) {
			devices = append(devices, name)
		}
	}
	return devices
}
