package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "25年9月", SheetName(date(2025, time.September, 10)))
	assert.Equal(t, "25年12月", SheetName(date(2025, time.December, 1)))
	assert.Equal(t, "26年1月", SheetName(date(2026, time.January, 31)))
	// Two-digit year is zero padded, month is not.
	assert.Equal(t, "05年3月", SheetName(date(2005, time.March, 3)))
}

func TestSplitByPeriodSingleMonth(t *testing.T) {
	spans := SplitByPeriod(date(2025, time.September, 10), date(2025, time.September, 12))
	require.Len(t, spans, 1)
	assert.Equal(t, "25年9月", spans[0].Sheet)
	assert.Equal(t, date(2025, time.September, 10), spans[0].Start)
	assert.Equal(t, date(2025, time.September, 12), spans[0].End)
}

func TestSplitByPeriodSingleDay(t *testing.T) {
	spans := SplitByPeriod(date(2025, time.September, 10), date(2025, time.September, 10))
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].Start, spans[0].End)
}

func TestSplitByPeriodCrossMonth(t *testing.T) {
	spans := SplitByPeriod(date(2025, time.September, 29), date(2025, time.October, 2))
	require.Len(t, spans, 2)

	assert.Equal(t, "25年9月", spans[0].Sheet)
	assert.Equal(t, date(2025, time.September, 29), spans[0].Start)
	assert.Equal(t, date(2025, time.September, 30), spans[0].End)

	assert.Equal(t, "25年10月", spans[1].Sheet)
	assert.Equal(t, date(2025, time.October, 1), spans[1].Start)
	assert.Equal(t, date(2025, time.October, 2), spans[1].End)
}

func TestSplitByPeriodCrossYear(t *testing.T) {
	spans := SplitByPeriod(date(2025, time.December, 30), date(2026, time.January, 2))
	require.Len(t, spans, 2)
	assert.Equal(t, "25年12月", spans[0].Sheet)
	assert.Equal(t, "26年1月", spans[1].Sheet)
	assert.Equal(t, date(2025, time.December, 31), spans[0].End)
	assert.Equal(t, date(2026, time.January, 1), spans[1].Start)
}

func TestSplitByPeriodSpanningFullMiddleMonth(t *testing.T) {
	spans := SplitByPeriod(date(2025, time.September, 15), date(2025, time.November, 5))
	require.Len(t, spans, 3)
	assert.Equal(t, date(2025, time.October, 1), spans[1].Start)
	assert.Equal(t, date(2025, time.October, 31), spans[1].End)
}
