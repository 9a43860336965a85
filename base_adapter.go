package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds every outbound platform call.
const DefaultHTTPTimeout = 30 * time.Second

// nearLimitRatio is the share of MaxContentLength after which a warning is emitted.
const nearLimitRatio = 0.9

// BaseAdapter carries the behavior shared by every platform adapter.
// Concrete adapters embed it and add the handshake and content calls.
type BaseAdapter struct {
	platform    Platform
	limits      PlatformLimits
	credentials CredentialProvider
	client      *http.Client
	logger      Logger
}

// BaseOption configures a BaseAdapter.
type BaseOption func(*BaseAdapter)

// WithHTTPClient overrides the HTTP client. Clients without a timeout get DefaultHTTPTimeout.
func WithHTTPClient(client *http.Client) BaseOption {
	return func(b *BaseAdapter) {
		if client != nil {
			b.client = client
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger Logger) BaseOption {
	return func(b *BaseAdapter) {
		b.logger = logger
	}
}

// NewBaseAdapter creates the shared adapter state.
func NewBaseAdapter(platform Platform, limits PlatformLimits, credentials CredentialProvider, opts ...BaseOption) *BaseAdapter {
	b := &BaseAdapter{
		platform:    platform,
		limits:      limits,
		credentials: credentials,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	if b.client == nil {
		b.client = &http.Client{Timeout: DefaultHTTPTimeout}
	} else if b.client.Timeout <= 0 {
		cp := *b.client
		cp.Timeout = DefaultHTTPTimeout
		b.client = &cp
	}
	b.logger = normalizeLogger(b.logger)
	return b
}

// Platform implements Adapter.
func (b *BaseAdapter) Platform() Platform {
	return b.platform
}

// PlatformLimits implements Adapter.
func (b *BaseAdapter) PlatformLimits() PlatformLimits {
	out := b.limits
	out.AllowedMediaTypes = slices.Clone(b.limits.AllowedMediaTypes)
	return out
}

// ValidatePost implements Adapter.
func (b *BaseAdapter) ValidatePost(post Post) ValidationResult {
	return ValidateAgainstLimits(b.platform, b.limits, post)
}

// HTTPClient returns the client used for platform calls.
func (b *BaseAdapter) HTTPClient() *http.Client {
	return b.client
}

// Logger returns the adapter logger.
func (b *BaseAdapter) Logger() Logger {
	return b.logger
}

// Credentials resolves the OAuth application credentials of the platform.
func (b *BaseAdapter) Credentials(ctx context.Context) (*OAuthCredentials, error) {
	if b.credentials == nil {
		idVar, secretVar := EnvVarNames(b.platform)
		return nil, fmt.Errorf("%w: no credential resolver configured for %s (expected %s and %s)",
			ErrCredentialsNotConfigured, b.platform.DisplayName(), idVar, secretVar)
	}
	return b.credentials.GetCredentials(ctx, b.platform)
}

// NewState returns a fresh opaque state token.
func (b *BaseAdapter) NewState() string {
	return NewStateToken()
}

// OAuthContext binds the adapter HTTP client to ctx for golang.org/x/oauth2 calls.
func (b *BaseAdapter) OAuthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.client)
}

// NewRequest builds a request with an optional bearer token.
func (b *BaseAdapter) NewRequest(ctx context.Context, method, endpoint, bearer string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

// GetJSON issues a GET and decodes the JSON response into out.
func (b *BaseAdapter) GetJSON(ctx context.Context, endpoint, bearer, operation string, out any) error {
	req, err := b.NewRequest(ctx, http.MethodGet, endpoint, bearer, nil)
	if err != nil {
		return b.WrapError(operation, err)
	}
	return b.DoJSON(req, operation, out)
}

// PostJSON issues a POST with a JSON body and decodes the JSON response into out.
func (b *BaseAdapter) PostJSON(ctx context.Context, endpoint, bearer, operation string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return b.WrapError(operation, err)
	}
	req, err := b.NewRequest(ctx, http.MethodPost, endpoint, bearer, bytes.NewReader(raw))
	if err != nil {
		return b.WrapError(operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.DoJSON(req, operation, out)
}

// PostForm issues a form encoded POST and decodes the JSON response into out.
func (b *BaseAdapter) PostForm(ctx context.Context, endpoint, bearer, operation string, form url.Values, out any) error {
	req, err := b.NewRequest(ctx, http.MethodPost, endpoint, bearer, strings.NewReader(form.Encode()))
	if err != nil {
		return b.WrapError(operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.DoJSON(req, operation, out)
}

// DoJSON executes req and decodes a successful response into out, which may be nil.
// Non 2xx responses become a *PlatformError carrying a reduced message.
func (b *BaseAdapter) DoJSON(req *http.Request, operation string, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return b.WrapError(operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return b.WrapError(operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewPlatformError(b.platform, operation, resp.StatusCode, ExtractErrorMessage(body), nil)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewPlatformError(b.platform, operation, resp.StatusCode, "failed to decode response", err)
	}
	return nil
}

// WrapError decorates err with the platform prefix. Token endpoint failures
// reported by golang.org/x/oauth2 keep their HTTP status.
func (b *BaseAdapter) WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		msg := rerr.ErrorDescription
		if msg == "" {
			msg = rerr.ErrorCode
		}
		if msg == "" {
			msg = ExtractErrorMessage(rerr.Body)
		}
		perr := NewPlatformError(b.platform, operation, status, msg, nil)
		perr.Code = rerr.ErrorCode
		return perr
	}

	return decorate(b.platform, operation, err)
}

// ZeroAnalytics logs an analytics failure and returns the zero value.
func (b *BaseAdapter) ZeroAnalytics(postID string, err error) Analytics {
	b.logger.Warn("analytics fetch failed, returning zero metrics",
		"platform", b.platform, "post_id", postID, "error", err)
	return Analytics{}
}

// NotImplemented returns the error for operations the platform does not support.
func (b *BaseAdapter) NotImplemented(operation string) error {
	return NotImplementedError(b.platform, operation)
}

// ExpiresIn converts an oauth2 token expiry into seconds from now.
func ExpiresIn(token *oauth2.Token) int64 {
	if token == nil {
		return 0
	}
	if token.ExpiresIn > 0 {
		return token.ExpiresIn
	}
	if token.Expiry.IsZero() {
		return 0
	}
	secs := int64(time.Until(token.Expiry).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// ValidateAgainstLimits checks post against limits.
func ValidateAgainstLimits(platform Platform, limits PlatformLimits, post Post) ValidationResult {
	result := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	length := utf8.RuneCountInString(post.Content)
	switch {
	case strings.TrimSpace(post.Content) == "":
		result.Errors = append(result.Errors, "Content is required")
	case limits.MaxContentLength > 0 && length > limits.MaxContentLength:
		result.Errors = append(result.Errors,
			fmt.Sprintf("Content exceeds maximum length of %d characters", limits.MaxContentLength))
	case limits.MaxContentLength > 0 && float64(length) > float64(limits.MaxContentLength)*nearLimitRatio:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Content is approaching the maximum length of %d characters", limits.MaxContentLength))
	}

	if limits.MaxTitleLength > 0 && utf8.RuneCountInString(post.Title) > limits.MaxTitleLength {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Title exceeds maximum length of %d characters", limits.MaxTitleLength))
	}

	if len(post.Media) > limits.MaxMediaCount {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Maximum %d media items allowed", limits.MaxMediaCount))
	}

	if post.HasVideo() && !limits.SupportsVideo {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Video content is not supported on %s", platform.DisplayName()))
	}
	if post.HasImages() && !limits.SupportsImages {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Image content is not supported on %s", platform.DisplayName()))
	}

	if len(limits.AllowedMediaTypes) > 0 {
		for _, m := range post.Media {
			if !slices.Contains(limits.AllowedMediaTypes, strings.ToLower(m.MimeType)) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Media type %q may not be supported on %s", m.MimeType, platform.DisplayName()))
			}
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// maxErrorMessageRunes bounds non JSON error bodies copied into messages.
const maxErrorMessageRunes = 200

// ExtractErrorMessage reduces a provider error body to a single message.
func ExtractErrorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		for _, key := range []string{"error_description", "message", "detail", "title", "error"} {
			switch v := payload[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
		if errs, ok := payload["errors"].([]any); ok && len(errs) > 0 {
			if first, ok := errs[0].(map[string]any); ok {
				if msg, ok := first["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
		return "unexpected error response"
	}

	msg := string(trimmed)
	if utf8.RuneCountInString(msg) > maxErrorMessageRunes {
		msg = string([]rune(msg)[:maxErrorMessageRunes])
	}
	return msg
}
