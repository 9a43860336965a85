package instagram

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social"
	"github.com/goliatone/go-social/platforms/internal/graph"
)

const (
	defaultVersion  = "v19.0"
	defaultDialog   = "https://www.facebook.com"
	defaultGraphURL = "https://graph.facebook.com"
	defaultWebURL   = "https://www.instagram.com"

	pageFields = "id,name,access_token,instagram_business_account{id,username,name,profile_picture_url}"
)

// Config holds Instagram Graph endpoints and transport settings.
type Config struct {
	Scopes []string

	Version   string
	DialogURL string
	GraphURL  string
	WebURL    string

	// PollInterval and MaxPollAttempts bound the wait for video containers.
	PollInterval    time.Duration
	MaxPollAttempts int

	HTTPClient *http.Client
	Logger     social.Logger
}

// DefaultScopes returns the scopes needed to publish to a business account.
func DefaultScopes() []string {
	return []string{
		"instagram_basic",
		"instagram_content_publish",
		"pages_show_list",
		"pages_read_engagement",
		"business_management",
	}
}

// Limits returns the Instagram content limits.
func Limits() social.PlatformLimits {
	return social.PlatformLimits{
		MaxContentLength: 2200,
		MaxMediaCount:    10,
		SupportsVideo:    true,
		SupportsImages:   true,
		AllowedMediaTypes: []string{
			"image/jpeg", "video/mp4", "video/quicktime",
		},
	}
}

// Adapter implements social.Adapter for Instagram business accounts, logged
// in through Facebook. Tokens follow the Facebook long-lived token model.
type Adapter struct {
	*social.BaseAdapter
	config Config
	poller graph.Poller
}

// New creates an Instagram adapter.
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
		BaseAdapter: social.NewBaseAdapter(social.PlatformInstagram, Limits(), credentials,
			social.WithHTTPClient(cfg.HTTPClient),
			social.WithLogger(cfg.Logger),
		),
		config: cfg,
		poller: graph.Poller{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.MaxPollAttempts,
			Field:       "status_code",
		},
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

// Authenticate implements social.Adapter.
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

// RefreshToken implements social.Adapter by re-exchanging the long-lived token.
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

// GetAccountInfo implements social.Adapter. The first page with a linked
// Instagram business account wins.
func (a *Adapter) GetAccountInfo(ctx context.Context, accessToken string) (*social.AccountInfo, error) {
	account, err := a.businessAccount(ctx, accessToken, "")
	if err != nil {
		return nil, err
	}

	name := account.Name
	if name == "" {
		name = account.Username
	}
	return &social.AccountInfo{
		ID:      account.ID,
		Name:    name,
		Handle:  account.Username,
		Picture: account.ProfilePictureURL,
	}, nil
}

func (a *Adapter) businessAccount(ctx context.Context, accessToken, id string) (*graph.BusinessAccount, error) {
	pages, err := graph.Pages(ctx, a.BaseAdapter, a.config.GraphURL, a.config.Version, accessToken, pageFields)
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		ig := page.InstagramBusinessAccount
		if ig == nil || ig.ID == "" {
			continue
		}
		if id == "" || ig.ID == id {
			return ig, nil
		}
	}
	return nil, social.NewPlatformError(social.PlatformInstagram, "account_info", http.StatusForbidden,
		"no Instagram business account is linked to a Facebook page", nil)
}

// ValidatePost implements social.Adapter. Instagram does not accept text only posts.
func (a *Adapter) ValidatePost(post social.Post) social.ValidationResult {
	result := a.BaseAdapter.ValidatePost(post)
	if len(post.Media) == 0 {
		result.Errors = append(result.Errors, "Instagram posts require at least one image or video")
		result.IsValid = false
	}
	return result
}

// PublishPost implements social.Adapter. Media is staged in containers, a
// carousel container groups several items, then media_publish makes it live.
// The "ig_user_id" option skips the account lookup.
func (a *Adapter) PublishPost(ctx context.Context, accessToken string, post social.Post) (*social.PublishResult, error) {
	if len(post.Media) == 0 {
		return nil, social.NewPlatformError(social.PlatformInstagram, "publish", http.StatusBadRequest,
			"Instagram posts require at least one image or video", nil)
	}

	igUserID := post.Option("ig_user_id", "")
	if igUserID == "" {
		account, err := a.businessAccount(ctx, accessToken, "")
		if err != nil {
			return nil, err
		}
		igUserID = account.ID
	}

	var (
		creationID string
		err        error
	)
	if len(post.Media) == 1 {
		creationID, err = a.createContainer(ctx, accessToken, igUserID, post.Media[0], post.Content, false)
	} else {
		creationID, err = a.createCarousel(ctx, accessToken, igUserID, post)
	}
	if err != nil {
		return nil, err
	}

	var published graph.IDResponse
	form := url.Values{"creation_id": {creationID}}
	if err := a.PostForm(ctx, a.endpoint("/"+igUserID+"/media_publish", nil), accessToken, "publish", form, &published); err != nil {
		return nil, err
	}
	if published.ID == "" {
		return nil, social.NewPlatformError(social.PlatformInstagram, "publish", 0, "missing media id in response", nil)
	}

	return &social.PublishResult{
		PostID:      published.ID,
		URL:         a.permalink(ctx, accessToken, published.ID),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (a *Adapter) createContainer(ctx context.Context, accessToken, igUserID string, media social.MediaItem, caption string, carouselItem bool) (string, error) {
	form := url.Values{}
	if media.IsVideo() {
		if carouselItem {
			form.Set("media_type", "VIDEO")
		} else {
			form.Set("media_type", "REELS")
		}
		form.Set("video_url", media.URL)
	} else {
		form.Set("image_url", media.URL)
		if media.AltText != "" {
			form.Set("alt_text", media.AltText)
		}
	}
	if carouselItem {
		form.Set("is_carousel_item", "true")
	} else if caption != "" {
		form.Set("caption", caption)
	}

	var container graph.IDResponse
	if err := a.PostForm(ctx, a.endpoint("/"+igUserID+"/media", nil), accessToken, "create_container", form, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", social.NewPlatformError(social.PlatformInstagram, "create_container", 0, "missing container id in response", nil)
	}

	if media.IsVideo() {
		if err := a.poller.Wait(ctx, a.BaseAdapter, a.endpoint("/"+container.ID, nil), accessToken); err != nil {
			return "", err
		}
	}
	return container.ID, nil
}

func (a *Adapter) createCarousel(ctx context.Context, accessToken, igUserID string, post social.Post) (string, error) {
	children := make([]string, 0, len(post.Media))
	for _, media := range post.Media {
		id, err := a.createContainer(ctx, accessToken, igUserID, media, "", true)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	form := url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
	}
	if post.Content != "" {
		form.Set("caption", post.Content)
	}

	var container graph.IDResponse
	if err := a.PostForm(ctx, a.endpoint("/"+igUserID+"/media", nil), accessToken, "create_container", form, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", social.NewPlatformError(social.PlatformInstagram, "create_container", 0, "missing container id in response", nil)
	}
	return container.ID, nil
}

// permalink falls back to the profile root when the lookup fails.
func (a *Adapter) permalink(ctx context.Context, accessToken, mediaID string) string {
	var resp struct {
		Permalink string `json:"permalink"`
	}
	endpoint := a.endpoint("/"+mediaID, url.Values{"fields": {"permalink"}})
	if err := a.GetJSON(ctx, endpoint, accessToken, "permalink", &resp); err != nil || resp.Permalink == "" {
		a.Logger().Debug("permalink lookup failed", "media_id", mediaID, "error", err)
		return a.config.WebURL + "/"
	}
	return resp.Permalink
}

// DeletePost implements social.Adapter. The Graph API offers no delete for
// published Instagram media.
func (a *Adapter) DeletePost(_ context.Context, _, _ string) error {
	return a.NotImplemented("delete")
}

// GetAnalytics implements social.Adapter.
func (a *Adapter) GetAnalytics(ctx context.Context, accessToken, postID string) social.Analytics {
	var resp struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	endpoint := a.endpoint("/"+url.PathEscape(postID), url.Values{"fields": {"like_count,comments_count"}})
	if err := a.GetJSON(ctx, endpoint, accessToken, "analytics", &resp); err != nil {
		return a.ZeroAnalytics(postID, err)
	}

	return social.Analytics{
		Likes:    resp.LikeCount,
		Comments: resp.CommentsCount,
	}
}
