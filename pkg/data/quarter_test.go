package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuarterStarts(t *testing.T) {
	from := time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	got := QuarterStarts(from, to)
	require.Len(t, got, 3)
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), got[2])

	got = QuarterStarts(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), to)
	assert.Len(t, got, 4)
	assert.Equal(t, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), QuarterStart(time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC)))
}

func TestLists(t *testing.T) {
	assert.Equal(t, `["AAPL","MSFT"]`, FormatList([]string{"AAPL", "MSFT"}))
	assert.Equal(t, `[]`, FormatList(nil))

	got, err := ParseList(`['AAPL', 'MSFT']`)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	got, err = ParseList(`["BRK.B"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"BRK.B"}, got)

	_, err = ParseList(`[AAPL`)
	assert.Error(t, err)
}
