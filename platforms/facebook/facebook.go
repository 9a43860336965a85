package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-social"
	"github.com/goliatone/go-social/platforms/internal/graph"
)

const (
	defaultVersion  = "v19.0"
	defaultDialog   = "https://www.facebook.com"
	defaultGraphURL = "https://graph.facebook.com"
	defaultWebURL   = "https://www.facebook.com"
)

// Config holds Facebook Graph endpoints and transport settings.
type Config struct {
	Scopes []string

	Version   string
	DialogURL string
	GraphURL  string
	WebURL    string

	HTTPClient *http.Client
	Logger     social.Logger
}

// DefaultScopes returns the page publishing scopes.
func DefaultScopes() []string {
	return []string{
		"public_profile",
		"pages_show_list",
		"pages_read_engagement",
		"pages_manage_posts",
	}
}

// Limits returns the Facebook content limits.
func Limits() social.PlatformLimits {
	return social.PlatformLimits{
		MaxContentLength:   63206,
		MaxMediaCount:      10,
		SupportsVideo:      true,
		SupportsImages:     true,
		SupportsScheduling: true,
		AllowedMediaTypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff",
			"video/mp4", "video/quicktime",
		},
	}
}

// Adapter implements social.Adapter for Facebook Pages.
//
// Facebook issues no refresh token. The long-lived user token is stored as the
// refresh token and re-exchanged with fb_exchange_token to extend it.
type Adapter struct {
	*social.BaseAdapter
	config Config
}

// New creates a Facebook adapter.
func New(credentials social.CredentialProvider, cfg Config) *Adapter {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.DialogURL == "" {
		cfg.DialogURL = defaultDialog
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	if cfg.WebURL == "" {
		cfg.WebURL = defaultWebURL
	}
	cfg.WebURL = strings.TrimRight(cfg.WebURL, "/")

	return &Adapter{
		BaseAdapter: social.NewBaseAdapter(social.PlatformFacebook, Limits(), credentials,
			social.WithHTTPClient(cfg.HTTPClient),
			social.WithLogger(cfg.Logger),
		),
		config: cfg,
	}
}

func (a *Adapter) endpoint(path string, query url.Values) string {
	return graph.Endpoint(a.config.GraphURL, a.config.Version, path, query)
}

// GenerateAuthURL implements social.Adapter.
func (a *Adapter) GenerateAuthURL(ctx context.Context, redirectURI string) (*social.AuthRequest, error) {
	creds, err := a.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	state := a.NewState()
	query := url.Values{
		"client_id":     {creds.ClientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"scope":         {strings.Join(a.config.Scopes, ",")},
		"response_type": {"code"},
	}
	return &social.AuthRequest{
		URL:   graph.Endpoint(a.config.DialogURL, a.config.Version, "/dialog/oauth", query),
		State: state,
	}, nil
}

// Authenticate implements social.Adapter. The short-lived token returned by the
// code exchange is swapped for a long-lived one before the profile is loaded.
func (a *Adapter) Authenticate(ctx context.Context, code, redirectURI string, _ ...social.ExchangeOption) (*social.TokenDetails, error) {
	creds, err := a.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	short, err := graph.GetToken(ctx, a.BaseAdapter, a.endpoint("/oauth/access_token", nil), url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	}, "authenticate")
	if err != nil {
		return nil, err
	}

	long, err := a.exchangeLongLived(ctx, creds, short.AccessToken)
	if err != nil {
		return nil, err
	}

	info, err := a.GetAccountInfo(ctx, long.AccessToken)
	if err != nil {
		return nil, err
	}

	return &social.TokenDetails{
		AccessToken:  long.AccessToken,
		RefreshToken: long.AccessToken,
		ExpiresIn:    long.ExpiresIn,
		PlatformID:   info.ID,
		Name:         info.Name,
		Handle:       info.Handle,
		Picture:      info.Picture,
	}, nil
}

// RefreshToken implements social.Adapter by re-exchanging the stored long-lived token.
func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (*social.TokenDetails, error) {
	creds, err := a.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	long, err := a.exchangeLongLived(ctx, creds, refreshToken)
	if err != nil {
		return nil, err
	}

	return &social.TokenDetails{
		AccessToken:  long.AccessToken,
		RefreshToken: long.AccessToken,
		ExpiresIn:    long.ExpiresIn,
	}, nil
}

func (a *Adapter) exchangeLongLived(ctx context.Context, creds *social.OAuthCredentials, token string) (*graph.Token, error) {
	return graph.GetToken(ctx, a.BaseAdapter, a.endpoint("/oauth/access_token", nil), url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {creds.ClientID},
		"client_secret":     {creds.ClientSecret},
		"fb_exchange_token": {token},
	}, "exchange_token")
}

// GetAccountInfo implements social.Adapter.
func (a *Adapter) GetAccountInfo(ctx context.Context, accessToken string) (*social.AccountInfo, error) {
	var me struct {
		ID      string                  `json:"id"`
		Name    string                  `json:"name"`
		Picture *graph.PictureContainer `json:"picture"`
	}
	endpoint := a.endpoint("/me", url.Values{"fields": {"id,name,picture"}})
	if err := a.GetJSON(ctx, endpoint, accessToken, "account_info", &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, social.NewPlatformError(social.PlatformFacebook, "account_info", 0, "profile without id", nil)
	}

	return &social.AccountInfo{
		ID:      me.ID,
		Name:    me.Name,
		Picture: me.Picture.URL(),
	}, nil
}

// PublishPost implements social.Adapter. Posts go to a managed page, chosen by
// the "page_id" option or the first page of the user. A unix timestamp in
// "scheduled_publish_time" schedules the post instead of publishing it.
func (a *Adapter) PublishPost(ctx context.Context, accessToken string, post social.Post) (*social.PublishResult, error) {
	page, err := a.resolvePage(ctx, accessToken, post.Option("page_id", ""))
	if err != nil {
		return nil, err
	}

	var scheduled *time.Time
	if raw := post.Option("scheduled_publish_time", ""); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, social.NewPlatformError(social.PlatformFacebook, "publish", http.StatusBadRequest,
				"scheduled_publish_time must be a unix timestamp", err)
		}
		at := time.Unix(secs, 0).UTC()
		scheduled = &at
	}

	var resp graph.IDResponse
	switch {
	case post.HasVideo():
		err = a.publishVideo(ctx, page, post, scheduled, &resp)
	case len(post.Media) == 1:
		err = a.publishPhoto(ctx, page, post, scheduled, &resp)
	case len(post.Media) > 1:
		err = a.publishAlbum(ctx, page, post, scheduled, &resp)
	default:
		err = a.publishFeed(ctx, page, post, scheduled, &resp)
	}
	if err != nil {
		return nil, err
	}

	postID := resp.PostID
	if postID == "" {
		postID = resp.ID
	}
	if postID == "" {
		return nil, social.NewPlatformError(social.PlatformFacebook, "publish", 0, "missing post id in response", nil)
	}

	publishedAt := time.Now().UTC()
	if scheduled != nil {
		publishedAt = *scheduled
	}

	return &social.PublishResult{
		PostID:      postID,
		URL:         a.config.WebURL + "/" + postID,
		PublishedAt: publishedAt,
	}, nil
}

func (a *Adapter) resolvePage(ctx context.Context, accessToken, pageID string) (*graph.Page, error) {
	pages, err := graph.Pages(ctx, a.BaseAdapter, a.config.GraphURL, a.config.Version, accessToken, "id,name,access_token")
	if err != nil {
		return nil, err
	}
	for i := range pages {
		if pageID == "" || pages[i].ID == pageID {
			return &pages[i], nil
		}
	}

	msg := "no managed Facebook page found"
	if pageID != "" {
		msg = fmt.Sprintf("page %s is not managed by this account", pageID)
	}
	return nil, social.NewPlatformError(social.PlatformFacebook, "publish", http.StatusForbidden, msg, nil)
}

func schedule(form url.Values, scheduled *time.Time) {
	if scheduled == nil {
		return
	}
	form.Set("published", "false")
	form.Set("scheduled_publish_time", strconv.FormatInt(scheduled.Unix(), 10))
}

func (a *Adapter) publishFeed(ctx context.Context, page *graph.Page, post social.Post, scheduled *time.Time, out *graph.IDResponse) error {
	form := url.Values{"message": {post.Content}}
	if post.Link != "" {
		form.Set("link", post.Link)
	}
	schedule(form, scheduled)
	return a.PostForm(ctx, a.endpoint("/"+page.ID+"/feed", nil), page.AccessToken, "publish", form, out)
}

func (a *Adapter) publishPhoto(ctx context.Context, page *graph.Page, post social.Post, scheduled *time.Time, out *graph.IDResponse) error {
	form := url.Values{
		"url":     {post.Media[0].URL},
		"message": {post.Content},
	}
	schedule(form, scheduled)
	return a.PostForm(ctx, a.endpoint("/"+page.ID+"/photos", nil), page.AccessToken, "publish", form, out)
}

func (a *Adapter) publishVideo(ctx context.Context, page *graph.Page, post social.Post, scheduled *time.Time, out *graph.IDResponse) error {
	var video social.MediaItem
	for _, m := range post.Media {
		if m.IsVideo() {
			video = m
			break
		}
	}

	form := url.Values{
		"file_url":    {video.URL},
		"description": {post.Content},
	}
	if post.Title != "" {
		form.Set("title", post.Title)
	}
	schedule(form, scheduled)
	return a.PostForm(ctx, a.endpoint("/"+page.ID+"/videos", nil), page.AccessToken, "publish", form, out)
}

// publishAlbum uploads every photo unpublished and attaches them to one feed post.
func (a *Adapter) publishAlbum(ctx context.Context, page *graph.Page, post social.Post, scheduled *time.Time, out *graph.IDResponse) error {
	form := url.Values{"message": {post.Content}}
	for i, m := range post.Media {
		var photo graph.IDResponse
		upload := url.Values{
			"url":       {m.URL},
			"published": {"false"},
		}
		if err := a.PostForm(ctx, a.endpoint("/"+page.ID+"/photos", nil), page.AccessToken, "upload_media", upload, &photo); err != nil {
			return err
		}

		attached, err := json.Marshal(map[string]string{"media_fbid": photo.ID})
		if err != nil {
			return a.WrapError("publish", err)
		}
		form.Set(fmt.Sprintf("attached_media[%d]", i), string(attached))
	}
	schedule(form, scheduled)
	return a.PostForm(ctx, a.endpoint("/"+page.ID+"/feed", nil), page.AccessToken, "publish", form, out)
}

// DeletePost implements social.Adapter.
func (a *Adapter) DeletePost(ctx context.Context, accessToken, postID string) error {
	req, err := a.NewRequest(ctx, http.MethodDelete, a.endpoint("/"+url.PathEscape(postID), nil), accessToken, nil)
	if err != nil {
		return a.WrapError("delete", err)
	}

	var resp graph.SuccessResponse
	if err := a.DoJSON(req, "delete", &resp); err != nil {
		return err
	}
	if !resp.Success {
		return social.NewPlatformError(social.PlatformFacebook, "delete", 0, "post was not deleted", nil)
	}
	return nil
}

// GetAnalytics implements social.Adapter.
func (a *Adapter) GetAnalytics(ctx context.Context, accessToken, postID string) social.Analytics {
	var resp struct {
		Shares struct {
			Count int64 `json:"count"`
		} `json:"shares"`
		Likes    graph.Summary `json:"likes"`
		Comments graph.Summary `json:"comments"`
	}
	endpoint := a.endpoint("/"+url.PathEscape(postID), url.Values{
		"fields": {"shares,likes.summary(true),comments.summary(true)"},
	})
	if err := a.GetJSON(ctx, endpoint, accessToken, "analytics", &resp); err != nil {
		return a.ZeroAnalytics(postID, err)
	}

	return social.Analytics{
		Likes:    resp.Likes.Summary.TotalCount,
		Shares:   resp.Shares.Count,
		Comments: resp.Comments.Summary.TotalCount,
	}
}
