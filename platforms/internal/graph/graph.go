// Package graph holds the Graph API plumbing shared by the Meta adapters
// (Facebook, Instagram and Threads).
package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social"
)

// Default container polling values for media that needs server side processing.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 30
)

// Token is the Graph token endpoint payload.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      any    `json:"user_id,omitempty"`
}

// Page is an entry of /me/accounts.
type Page struct {
	ID                       string            `json:"id"`
	Name                     string            `json:"name"`
	AccessToken              string            `json:"access_token"`
	InstagramBusinessAccount *BusinessAccount  `json:"instagram_business_account,omitempty"`
	Picture                  *PictureContainer `json:"picture,omitempty"`
}

// BusinessAccount is the Instagram account linked to a page.
type BusinessAccount struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// PictureContainer mirrors the Graph picture edge.
type PictureContainer struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// URL returns the picture URL or an empty string.
func (p *PictureContainer) URL() string {
	if p == nil {
		return ""
	}
	return p.Data.URL
}

// Endpoint joins base, version and path into a Graph URL with an optional query.
func Endpoint(base, version, path string, query url.Values) string {
	u := strings.TrimRight(base, "/")
	if version != "" {
		u += "/" + strings.Trim(version, "/")
	}
	u += "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetToken calls a Graph token endpoint that takes its parameters in the query string.
func GetToken(ctx context.Context, b *social.BaseAdapter, endpoint string, params url.Values, operation string) (*Token, error) {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}

	var token Token
	if err := b.GetJSON(ctx, endpoint+sep+params.Encode(), "", operation, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, social.NewPlatformError(b.Platform(), operation, 0, "token response without access_token", nil)
	}
	return &token, nil
}

// Pages lists the Facebook pages the user manages.
func Pages(ctx context.Context, b *social.BaseAdapter, base, version, accessToken, fields string) ([]Page, error) {
	var resp struct {
		Data []Page `json:"data"`
	}
	endpoint := Endpoint(base, version, "/me/accounts", url.Values{"fields": {fields}})
	if err := b.GetJSON(ctx, endpoint, accessToken, "list_pages", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Poller waits for a media container to finish processing.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// Field is the status field name, e.g. "status_code" or "status".
	Field string
}

// Wait polls endpoint until the status field reports FINISHED or PUBLISHED.
// ERROR or EXPIRED stop the wait with a platform error.
func (p Poller) Wait(ctx context.Context, b *social.BaseAdapter, endpoint, accessToken string) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxPollAttempts
	}
	field := p.Field
	if field == "" {
		field = "status_code"
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	statusURL := endpoint + sep + url.Values{"fields": {field}}.Encode()

	for i := 0; i < attempts; i++ {
		var resp map[string]any
		if err := b.GetJSON(ctx, statusURL, accessToken, "container_status", &resp); err != nil {
			return err
		}

		status, _ := resp[field].(string)
		switch strings.ToUpper(status) {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return social.NewPlatformError(b.Platform(), "container_status", 0,
				fmt.Sprintf("media container processing failed with status %s", status), nil)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return b.WrapError("container_status", ctx.Err())
		case <-timer.C:
		}
	}

	return social.NewPlatformError(b.Platform(), "container_status", http.StatusGatewayTimeout,
		"media container was not ready in time", nil)
}

// Summary is the Graph edge summary used by likes and comments.
type Summary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

// IDResponse is the common {"id": "..."} payload.
type IDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id,omitempty"`
}

// SuccessResponse is returned by Graph deletes.
type SuccessResponse struct {
	Success bool `json:"success"`
}
