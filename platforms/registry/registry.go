// Package registry wires every supported platform adapter into a social.Registry.
// Registration is explicit so the set of adapters is visible in one place.
package registry

import (
	"net/http"

	"github.com/goliatone/go-social"
	"github.com/goliatone/go-social/platforms/facebook"
	"github.com/goliatone/go-social/platforms/instagram"
	"github.com/goliatone/go-social/platforms/linkedin"
	"github.com/goliatone/go-social/platforms/reddit"
	"github.com/goliatone/go-social/platforms/threads"
	"github.com/goliatone/go-social/platforms/twitter"
)

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Credentials social.CredentialProvider
	HTTPClient  *http.Client
	Logger      social.Logger

	// RedditUserAgent overrides the Reddit User-Agent header.
	RedditUserAgent string
	// Only limits registration to the listed platforms when not empty.
	Only []social.Platform
}

func (d Deps) enabled(p social.Platform) bool {
	if len(d.Only) == 0 {
		return true
	}
	for _, o := range d.Only {
		if o == p {
			return true
		}
	}
	return false
}

// New builds the adapter for platform, or returns ErrAdapterNotRegistered for
// unknown identifiers.
func New(platform social.Platform, deps Deps) (social.Adapter, error) {
	logger := deps.Logger
	if sl, ok := logger.(*social.SlogLogger); ok {
		logger = sl.With("platform", string(platform))
	}

	switch platform {
	case social.PlatformLinkedIn:
		return linkedin.New(deps.Credentials, linkedin.Config{HTTPClient: deps.HTTPClient, Logger: logger}), nil
	case social.PlatformTwitter:
		return twitter.New(deps.Credentials, twitter.Config{HTTPClient: deps.HTTPClient, Logger: logger}), nil
	case social.PlatformFacebook:
		return facebook.New(deps.Credentials, facebook.Config{HTTPClient: deps.HTTPClient, Logger: logger}), nil
	case social.PlatformInstagram:
		return instagram.New(deps.Credentials, instagram.Config{HTTPClient: deps.HTTPClient, Logger: logger}), nil
	case social.PlatformThreads:
		return threads.New(deps.Credentials, threads.Config{HTTPClient: deps.HTTPClient, Logger: logger}), nil
	case social.PlatformReddit:
		return reddit.New(deps.Credentials, reddit.Config{
			HTTPClient: deps.HTTPClient,
			Logger:     logger,
			UserAgent:  deps.RedditUserAgent,
		}), nil
	}
	return nil, social.ErrAdapterNotRegistered
}

// Supported lists every platform this module ships an adapter for.
func Supported() []social.Platform {
	return []social.Platform{
		social.PlatformLinkedIn,
		social.PlatformTwitter,
		social.PlatformFacebook,
		social.PlatformInstagram,
		social.PlatformThreads,
		social.PlatformReddit,
	}
}

// RegisterAll registers every supported adapter on reg and returns it.
func RegisterAll(reg *social.Registry, deps Deps) *social.Registry {
	if reg == nil {
		reg = social.NewRegistry()
	}
	for _, platform := range Supported() {
		if !deps.enabled(platform) {
			continue
		}
		adapter, err := New(platform, deps)
		if err != nil {
			continue
		}
		reg.Register(adapter)
	}
	return reg
}
