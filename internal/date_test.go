package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_Set(t *testing.T) {
	var d Date
	require.NoError(t, d.Set("2023-06-23"))
	assert.Equal(t, "2023-06-23", d.String())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2023-06-23", v)

	assert.Error(t, d.Set("23/06/2023"))
	assert.Equal(t, "2023-06-23", d.String())
}

func TestDaysBetween(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 01:30 UTC is still the previous day in Sao Paulo.
	min := time.Date(2023, 6, 23, 1, 30, 0, 0, time.UTC)
	max := time.Date(2023, 6, 25, 12, 0, 0, 0, time.UTC)

	var got []string
	for _, d := range DaysBetween(min, max, loc) {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2023-06-22", "2023-06-23", "2023-06-24", "2023-06-25"}, got)

	assert.Empty(t, DaysBetween(max, min, loc))
	assert.Len(t, DaysBetween(min, min, nil), 1)
}
