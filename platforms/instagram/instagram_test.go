package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = social.StaticCredentials{
	social.PlatformInstagram: {ClientID: "app-id", ClientSecret: "app-secret"},
}

const accountsBody = `{"data":[
	{"id":"page-1","name":"No IG","access_token":"pt1"},
	{"id":"page-2","name":"Shop","access_token":"pt2","instagram_business_account":{"id":"ig-42","username":"shop","name":"The Shop","profile_picture_url":"https://cdn.example/shop.jpg"}}
]}`

func newTestAdapter(serverURL string) *Adapter {
	return New(testCreds, Config{
		GraphURL:        serverURL,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
		Logger:          social.NopLogger(),
	})
}

func TestAuthenticateResolvesBusinessAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v19.0/oauth/access_token":
			if r.URL.Query().Get("grant_type") == "fb_exchange_token" {
				_, _ = w.Write([]byte(`{"access_token":"long","expires_in":5184000}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"short","expires_in":3600}`))
		case "/v19.0/me/accounts":
			assert.Equal(t, "Bearer long", r.Header.Get("Authorization"))
			assert.Contains(t, r.URL.Query().Get("fields"), "instagram_business_account")
			_, _ = w.Write([]byte(accountsBody))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	details, err := newTestAdapter(server.URL).Authenticate(context.Background(), "code", "https://app.example/callback")
	require.NoError(t, err)

	assert.Equal(t, "long", details.AccessToken)
	assert.Equal(t, "long", details.RefreshToken)
	assert.Equal(t, "ig-42", details.PlatformID)
	assert.Equal(t, "The Shop", details.Name)
	assert.Equal(t, "shop", details.Handle)
	assert.Equal(t, "https://cdn.example/shop.jpg", details.Picture)
}

func TestGetAccountInfoWithoutBusinessAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"page-1","name":"No IG"}]}`))
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).GetAccountInfo(context.Background(), "token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, social.ErrPlatformForbidden))
	assert.Contains(t, err.Error(), "no Instagram business account")
}

func TestPublishSingleImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v19.0/ig-42/media":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "https://cdn.example/a.jpg", r.PostForm.Get("image_url"))
			assert.Equal(t, "Caption", r.PostForm.Get("caption"))
			_, _ = w.Write([]byte(`{"id":"container-1"}`))
		case "/v19.0/ig-42/media_publish":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "container-1", r.PostForm.Get("creation_id"))
			_, _ = w.Write([]byte(`{"id":"media-1"}`))
		case "/v19.0/media-1":
			_, _ = w.Write([]byte(`{"permalink":"https://www.instagram.com/p/abc/"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	result, err := newTestAdapter(server.URL).PublishPost(context.Background(), "token", social.Post{
		Content: "Caption",
		Media:   []social.MediaItem{{URL: "https://cdn.example/a.jpg", MimeType: "image/jpeg"}},
		Options: map[string]string{"ig_user_id": "ig-42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "media-1", result.PostID)
	assert.Equal(t, "https://www.instagram.com/p/abc/", result.URL)
}

func TestPublishCarouselWithVideoPollsContainer(t *testing.T) {
	var containers, polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v19.0/me/accounts":
			_, _ = w.Write([]byte(accountsBody))
		case "/v19.0/ig-42/media":
			assert.NoError(t, r.ParseForm())
			if r.PostForm.Get("media_type") == "CAROUSEL" {
				assert.Equal(t, "child-1,child-2", r.PostForm.Get("children"))
				assert.Equal(t, "Two things", r.PostForm.Get("caption"))
				_, _ = w.Write([]byte(`{"id":"carousel-1"}`))
				return
			}
			assert.Equal(t, "true", r.PostForm.Get("is_carousel_item"))
			n := atomic.AddInt32(&containers, 1)
			if n == 2 {
				assert.Equal(t, "VIDEO", r.PostForm.Get("media_type"))
				assert.Equal(t, "https://cdn.example/b.mp4", r.PostForm.Get("video_url"))
			}
			_, _ = w.Write([]byte(`{"id":"child-` + map[int32]string{1: "1", 2: "2"}[n] + `"}`))
		case "/v19.0/child-2":
			assert.Equal(t, "status_code", r.URL.Query().Get("fields"))
			if atomic.AddInt32(&polls, 1) < 2 {
				_, _ = w.Write([]byte(`{"status_code":"IN_PROGRESS"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status_code":"FINISHED"}`))
		case "/v19.0/ig-42/media_publish":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "carousel-1", r.PostForm.Get("creation_id"))
			_, _ = w.Write([]byte(`{"id":"media-9"}`))
		case "/v19.0/media-9":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	result, err := newTestAdapter(server.URL).PublishPost(context.Background(), "token", social.Post{
		Content: "Two things",
		Media: []social.MediaItem{
			{URL: "https://cdn.example/a.jpg", MimeType: "image/jpeg"},
			{URL: "https://cdn.example/b.mp4", MimeType: "video/mp4"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "media-9", result.PostID)
	assert.Equal(t, "https://www.instagram.com/", result.URL)
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestPublishVideoContainerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v19.0/ig-42/media":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "REELS", r.PostForm.Get("media_type"))
			_, _ = w.Write([]byte(`{"id":"reel-1"}`))
		case "/v19.0/reel-1":
			_, _ = w.Write([]byte(`{"status_code":"ERROR"}`))
		default:
			t.Errorf("unexpected call to %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).PublishPost(context.Background(), "token", social.Post{
		Content: "Reel",
		Media:   []social.MediaItem{{URL: "https://cdn.example/r.mp4", MimeType: "video/mp4"}},
		Options: map[string]string{"ig_user_id": "ig-42"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media container processing failed with status ERROR")
}

func TestPublishVideoContainerTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v19.0/ig-42/media" {
			_, _ = w.Write([]byte(`{"id":"reel-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status_code":"IN_PROGRESS"}`))
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).PublishPost(context.Background(), "token", social.Post{
		Content: "Reel",
		Media:   []social.MediaItem{{URL: "https://cdn.example/r.mp4", MimeType: "video/mp4"}},
		Options: map[string]string{"ig_user_id": "ig-42"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not ready in time")
}

func TestPublishRequiresMedia(t *testing.T) {
	_, err := New(testCreds, Config{}).PublishPost(context.Background(), "token", social.Post{Content: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require at least one image or video")
}

func TestValidatePostRequiresMedia(t *testing.T) {
	adapter := New(testCreds, Config{})

	result := adapter.ValidatePost(social.Post{Content: "text only"})
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"Instagram posts require at least one image or video"}, result.Errors)

	result = adapter.ValidatePost(social.Post{
		Content: "ok",
		Media:   []social.MediaItem{{URL: "https://cdn.example/a.jpg", MimeType: "image/jpeg"}},
	})
	assert.True(t, result.IsValid)

	var asAdapter social.Adapter = adapter
	assert.False(t, asAdapter.ValidatePost(social.Post{Content: "text only"}).IsValid)
}

func TestDeletePostIsNotImplemented(t *testing.T) {
	err := New(testCreds, Config{}).DeletePost(context.Background(), "token", "media-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, social.ErrNotImplemented))
}

func TestGetAnalytics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "like_count,comments_count", r.URL.Query().Get("fields"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"like_count":99,"comments_count":12,"id":"media-1"}`))
	}))
	defer server.Close()

	analytics := newTestAdapter(server.URL).GetAnalytics(context.Background(), "token", "media-1")
	assert.Equal(t, int64(99), analytics.Likes)
	assert.Equal(t, int64(12), analytics.Comments)
}
