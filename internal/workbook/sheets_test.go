package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(1))
	assert.Equal(t, "B", columnName(2))
	assert.Equal(t, "Z", columnName(26))
	assert.Equal(t, "AA", columnName(27))
	assert.Equal(t, "AZ", columnName(52))
	assert.Equal(t, "BA", columnName(53))
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'25年9月'", quoteSheet("25年9月"))
}

func TestSheetsSessionBatchesLocally(t *testing.T) {
	s := &sheetsSession{
		titles:   []string{"25年9月"},
		rowCache: map[string][][]string{"25年9月": {{"a", "b"}}},
		appends:  make(map[string][][]interface{}),
	}

	require.NoError(t, s.SetCell("25年9月", 3, 2, "C:abc12345"))
	require.Len(t, s.pending, 1)
	assert.Equal(t, "'25年9月'!C2", s.pending[0].Range)

	// The write is visible to reads within the same session.
	value, err := s.Cell("25年9月", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, "C:abc12345", value)

	// Untouched cells keep the fetched values.
	value, err = s.Cell("25年9月", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", value)
}

func TestSheetsSessionAppendRowCached(t *testing.T) {
	s := &sheetsSession{
		titles:   []string{"log"},
		rowCache: map[string][][]string{"log": {{"h1", "h2"}}},
		appends:  make(map[string][][]interface{}),
	}

	require.NoError(t, s.AppendRow("log", []string{"v1", "v2"}))

	rows, err := s.Rows("log")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"v1", "v2"}, rows[1])
	assert.Len(t, s.appends["log"], 1)
}
