package main

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/calsync/internal"
)

func TestInt64s(t *testing.T) {
	var ids Int64s
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&ids, "account", "")

	require.NoError(t, fs.Parse([]string{"-account", "1", "-account", "2, 3"}))
	assert.Equal(t, Int64s{1, 2, 3}, ids)
	assert.Equal(t, "1, 2, 3", ids.String())

	assert.Error(t, ids.Set("abc"))
}

func TestWindow(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	var from, to internal.Date
	require.NoError(t, from.Set("2023-06-01"))
	require.NoError(t, to.Set("2023-06-30"))

	min, max, err := window(from, to, berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, berlin), min)
	assert.Equal(t, time.Date(2023, 7, 1, 0, 0, 0, 0, berlin), max)

	min, max, err = window(internal.Date{}, internal.Date{}, berlin)
	require.NoError(t, err)
	assert.True(t, min.IsZero() && max.IsZero())

	_, _, err = window(from, internal.Date{}, berlin)
	assert.Error(t, err)

	_, _, err = window(to, from, berlin)
	assert.Error(t, err)
}

func TestNewMux(t *testing.T) {
	assert.Equal(t, []internal.Platform{internal.PlatformAzure, internal.PlatformGoogle}, newMux().Platforms())
}
