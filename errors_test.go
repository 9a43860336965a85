package social

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *PlatformError
		want string
	}{
		{
			name: "unauthorized default",
			err:  NewPlatformError(PlatformLinkedIn, "publish", http.StatusUnauthorized, "", nil),
			want: "LinkedIn authentication failed: please reconnect your account",
		},
		{
			name: "forbidden",
			err:  NewPlatformError(PlatformFacebook, "publish", http.StatusForbidden, "missing pages_manage_posts", nil),
			want: "Facebook permission denied: missing pages_manage_posts",
		},
		{
			name: "rate limited default",
			err:  NewPlatformError(PlatformTwitter, "publish", http.StatusTooManyRequests, "", nil),
			want: "Twitter rate limit exceeded: please try again later",
		},
		{
			name: "server error",
			err:  NewPlatformError(PlatformReddit, "publish", http.StatusInternalServerError, "", nil),
			want: "Reddit API error (500): request failed",
		},
		{
			name: "transport cause",
			err:  NewPlatformError(PlatformThreads, "publish", 0, "", errors.New("timeout")),
			want: "Threads API error: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPlatformErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", NewPlatformError(PlatformTwitter, "refresh_token", http.StatusUnauthorized, "", cause))

	assert.True(t, errors.Is(err, ErrPlatformUnauthorized))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrPlatformForbidden))

	assert.True(t, errors.Is(NewPlatformError(PlatformTwitter, "x", http.StatusForbidden, "", nil), ErrPlatformForbidden))
	assert.True(t, errors.Is(NewPlatformError(PlatformTwitter, "x", http.StatusBadRequest, "", nil), ErrPlatformAPI))
}

func TestPlatformErrorMetadata(t *testing.T) {
	perr := NewPlatformError(PlatformReddit, "publish", http.StatusBadRequest, "bad", nil)
	perr.Code = "SUBREDDIT_NOEXIST"

	assert.Equal(t, map[string]any{
		"platform":  "reddit",
		"operation": "publish",
		"status":    http.StatusBadRequest,
		"code":      "SUBREDDIT_NOEXIST",
	}, perr.Metadata())
}

func TestSentinelCodes(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		textCode string
	}{
		{ErrCredentialsNotConfigured, http.StatusInternalServerError, TextCodeCredentialsNotConfigured},
		{ErrAdapterNotRegistered, http.StatusNotFound, TextCodeAdapterNotRegistered},
		{ErrInvalidState, http.StatusBadRequest, TextCodeInvalidState},
		{ErrStateExpired, http.StatusBadRequest, TextCodeStateExpired},
		{ErrNotImplemented, http.StatusNotImplemented, TextCodeNotImplemented},
		{ErrPlatformRateLimited, http.StatusTooManyRequests, TextCodePlatformRateLimited},
		{ErrAccountNotFound, http.StatusNotFound, TextCodeAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.textCode, func(t *testing.T) {
			var rich *goerrors.Error
			require.True(t, errors.As(tt.err, &rich))
			assert.Equal(t, tt.status, rich.Code)
			assert.Equal(t, tt.textCode, rich.TextCode)

			wrapped := fmt.Errorf("%w: detail", tt.err)
			assert.Equal(t, tt.status, errorStatus(wrapped))
			assert.Equal(t, tt.textCode, errorTextCode(wrapped))
		})
	}
}

func TestNotImplementedError(t *testing.T) {
	err := NotImplementedError(PlatformInstagram, "delete")
	assert.True(t, errors.Is(err, ErrNotImplemented))
	assert.Contains(t, err.Error(), "delete is not implemented for Instagram")
}

func TestErrorStatusFallback(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, errorStatus(errors.New("plain")))
	assert.Equal(t, "social_error", errorTextCode(errors.New("plain")))
}
