package registry

import (
	"errors"
	"testing"

	"github.com/goliatone/go-social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAllRegistersEverySupportedPlatform(t *testing.T) {
	reg := RegisterAll(nil, Deps{Credentials: social.StaticCredentials{}, Logger: social.NopLogger()})

	assert.Equal(t, []social.Platform{
		social.PlatformFacebook,
		social.PlatformInstagram,
		social.PlatformLinkedIn,
		social.PlatformReddit,
		social.PlatformThreads,
		social.PlatformTwitter,
	}, reg.GetAvailablePlatforms())

	for _, platform := range Supported() {
		adapter, err := reg.GetAdapter(platform)
		require.NoError(t, err)
		assert.Equal(t, platform, adapter.Platform())
		assert.Positive(t, adapter.PlatformLimits().MaxContentLength)
	}
}

func TestRegisterAllOnly(t *testing.T) {
	reg := social.NewRegistry()
	RegisterAll(reg, Deps{Only: []social.Platform{social.PlatformReddit, social.PlatformTwitter}})

	assert.Equal(t, []social.Platform{social.PlatformReddit, social.PlatformTwitter}, reg.GetAvailablePlatforms())
	assert.False(t, reg.HasAdapter(social.PlatformLinkedIn))
}

func TestNewUnknownPlatform(t *testing.T) {
	_, err := New(social.Platform("myspace"), Deps{})
	assert.True(t, errors.Is(err, social.ErrAdapterNotRegistered))
}

func TestNewWrapsSlogLogger(t *testing.T) {
	adapter, err := New(social.PlatformLinkedIn, Deps{Logger: social.NewSlogLogger(nil)})
	require.NoError(t, err)
	assert.Equal(t, social.PlatformLinkedIn, adapter.Platform())
}
