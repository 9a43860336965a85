package social

import (
	"strings"
	"time"
)

// Platform identifies a social network supported by an adapter.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformThreads   Platform = "threads"
	PlatformReddit    Platform = "reddit"
)

func (p Platform) String() string {
	return string(p)
}

// DisplayName returns the human readable platform name used in messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformLinkedIn:
		return "LinkedIn"
	case PlatformTwitter:
		return "Twitter"
	case PlatformFacebook:
		return "Facebook"
	case PlatformInstagram:
		return "Instagram"
	case PlatformThreads:
		return "Threads"
	case PlatformReddit:
		return "Reddit"
	}
	s := string(p)
	if s == "" {
		return "Platform"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParsePlatform normalizes a raw platform identifier.
func ParsePlatform(raw string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PlatformLinkedIn, PlatformTwitter, PlatformFacebook,
		PlatformInstagram, PlatformThreads, PlatformReddit:
		return p, true
	}
	return p, false
}

// TokenDetails is the result of a code exchange or a token refresh.
// It is never persisted as is, OAuthManager translates it into a SocialAccount.
type TokenDetails struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is relative, in seconds. Zero means the platform did not report it.
	ExpiresIn  int64
	PlatformID string
	Name       string
	Handle     string
	Picture    string
}

// MediaItem references media attached to a post.
type MediaItem struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	AltText  string `json:"alt_text,omitempty"`
}

// IsVideo reports whether the item is video content.
func (m MediaItem) IsVideo() bool {
	return strings.HasPrefix(strings.ToLower(m.MimeType), "video/")
}

// IsImage reports whether the item is image content.
func (m MediaItem) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(m.MimeType), "image/")
}

// Post is the platform neutral content model.
type Post struct {
	Content string      `json:"content"`
	Title   string      `json:"title,omitempty"`
	Media   []MediaItem `json:"media,omitempty"`
	Link    string      `json:"link,omitempty"`
	// Options carries platform specific values such as "subreddit" or "page_id".
	Options map[string]string `json:"options,omitempty"`
}

// Option returns a platform specific option or the fallback.
func (p Post) Option(key, fallback string) string {
	if p.Options == nil {
		return fallback
	}
	if v := strings.TrimSpace(p.Options[key]); v != "" {
		return v
	}
	return fallback
}

// HasVideo reports whether any media item is a video.
func (p Post) HasVideo() bool {
	for _, m := range p.Media {
		if m.IsVideo() {
			return true
		}
	}
	return false
}

// HasImages reports whether any media item is an image.
func (p Post) HasImages() bool {
	for _, m := range p.Media {
		if m.IsImage() {
			return true
		}
	}
	return false
}

// PublishResult describes a published post.
type PublishResult struct {
	PostID      string    `json:"post_id"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Analytics are best effort engagement metrics for a post.
type Analytics struct {
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	Shares      int64  `json:"shares"`
	Comments    int64  `json:"comments"`
	Clicks      *int64 `json:"clicks,omitempty"`
	Impressions *int64 `json:"impressions,omitempty"`
}

// ValidationResult lists the limit violations found for a post.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// PlatformLimits is the static capability declaration of a platform.
type PlatformLimits struct {
	MaxContentLength int `json:"max_content_length"`
	MaxMediaCount    int `json:"max_media_count"`
	// MaxTitleLength is zero when the platform has no title concept.
	MaxTitleLength     int      `json:"max_title_length,omitempty"`
	SupportsVideo      bool     `json:"supports_video"`
	SupportsImages     bool     `json:"supports_images"`
	SupportsScheduling bool     `json:"supports_scheduling"`
	AllowedMediaTypes  []string `json:"allowed_media_types"`
}

// AccountInfo is the normalized profile of a connected account.
type AccountInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Handle  string `json:"handle,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// AuthRequest is returned by an adapter when starting the authorization flow.
type AuthRequest struct {
	URL   string
	State string
	// CodeVerifier is set by adapters that use PKCE.
	CodeVerifier string
}

// Int64 returns a pointer to v, handy for the optional analytics fields.
func Int64(v int64) *int64 {
	return &v
}
