package calendar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/calsync/calendar"
	"github.com/guilherme-santos/calsync/internal"
)

func TestMux(t *testing.T) {
	mux := calendar.NewMux()

	var got internal.ProviderConfig
	mux.Register(internal.PlatformGoogle, func(cfg internal.ProviderConfig) (internal.Provider, error) {
		got = cfg
		return nil, nil
	})
	assert.Equal(t, []internal.Platform{internal.PlatformGoogle}, mux.Platforms())

	_, err := mux.New(internal.PlatformGoogle, internal.ProviderConfig{Email: "me@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "me@acme.com", got.Email)

	_, err = mux.New(internal.PlatformAzure, internal.ProviderConfig{})
	assert.ErrorIs(t, err, calendar.ErrUnknownProvider)
}
