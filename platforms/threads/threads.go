package threads

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social"
	"github.com/goliatone/go-social/platforms/internal/graph"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://threads.net/oauth/authorize"
	defaultTokenURL = "https://graph.threads.net/oauth/access_token"
	defaultGraphURL = "https://graph.threads.net"
	defaultVersion  = "v1.0"
	defaultWebURL   = "https://www.threads.net"
)

// Config holds Threads endpoints and transport settings.
type Config struct {
	Scopes []string

	AuthURL  string
	TokenURL string
	GraphURL string
	Version  string
	WebURL   string

	PollInterval    time.Duration
	MaxPollAttempts int

	HTTPClient *http.Client
	Logger     social.Logger
}

// DefaultScopes returns the Threads publishing scopes.
func DefaultScopes() []string {
	return []string{"threads_basic", "threads_content_publish", "threads_manage_insights"}
}

// Limits returns the Threads content limits.
func Limits() social.PlatformLimits {
	return social.PlatformLimits{
		MaxContentLength: 500,
		MaxMediaCount:    10,
		SupportsVideo:    true,
		SupportsImages:   true,
		AllowedMediaTypes: []string{
			"image/jpeg", "image/png", "video/mp4", "video/quicktime",
		},
	}
}

// Adapter implements social.Adapter for Threads.
//
// The long-lived token doubles as the refresh token, th_refresh_token extends it.
type Adapter struct {
	*social.BaseAdapter
	config Config
	poller graph.Poller
}

// New creates a Threads adapter.
func New(credentials social.CredentialProvider, cfg Config) *Adapter {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.WebURL == "" {
		cfg.WebURL = defaultWebURL
	}
	cfg.WebURL = strings.TrimRight(cfg.WebURL, "/")

	return &Adapter{
		BaseAdapter: social.NewBaseAdapter(social.PlatformThreads, Limits(), credentials,
			social.WithHTTPClient(cfg.HTTPClient),
			social.WithLogger(cfg.Logger),
		),
		config: cfg,
		poller: graph.Poller{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.MaxPollAttempts,
			Field:       "status",
		},
	}
}

func (a *Adapter) endpoint(path string, query url.Values) string {
	return graph.Endpoint(a.config.GraphURL, a.config.Version, path, query)
}

func (a *Adapter) oauthConfig(ctx context.Context, redirectURI string) (*oauth2.Config, *social.OAuthCredentials, error) {
	creds, err := a.Credentials(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       a.config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.config.AuthURL,
			TokenURL:  a.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, creds, nil
}

// GenerateAuthURL implements social.Adapter.
func (a *Adapter) GenerateAuthURL(ctx context.Context, redirectURI string) (*social.AuthRequest, error) {
	oc, _, err := a.oauthConfig(ctx, redirectURI)
	if err != nil {
		return nil, err
	}
	state := a.NewState()
	return &social.AuthRequest{
		URL:   oc.AuthCodeURL(state),
		State: state,
	}, nil
}

// Authenticate implements social.Adapter. The short-lived token from the code
// exchange is upgraded with th_exchange_token.
func (a *Adapter) Authenticate(ctx context.Context, code, redirectURI string, _ ...social.ExchangeOption) (*social.TokenDetails, error) {
	oc, creds, err := a.oauthConfig(ctx, redirectURI)
	if err != nil {
		return nil, err
	}

	short, err := oc.Exchange(a.OAuthContext(ctx), code)
	if err != nil {
		return nil, a.WrapError("authenticate", err)
	}

	long, err := graph.GetToken(ctx, a.BaseAdapter, graph.Endpoint(a.config.GraphURL, "", "/access_token", nil), url.Values{
		"grant_type":    {"th_exchange_token"},
		"client_secret": {creds.ClientSecret},
		"access_token":  {short.AccessToken},
	}, "exchange_token")
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

// RefreshToken implements social.Adapter. The token must be at least a day
// old and not expired for Threads to accept it.
func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (*social.TokenDetails, error) {
	long, err := graph.GetToken(ctx, a.BaseAdapter, graph.Endpoint(a.config.GraphURL, "", "/refresh_access_token", nil), url.Values{
		"grant_type":   {"th_refresh_token"},
		"access_token": {refreshToken},
	}, "refresh_token")
	if err != nil {
		return nil, err
	}

	return &social.TokenDetails{
		AccessToken:  long.AccessToken,
		RefreshToken: long.AccessToken,
		ExpiresIn:    long.ExpiresIn,
	}, nil
}

// GetAccountInfo implements social.Adapter.
func (a *Adapter) GetAccountInfo(ctx context.Context, accessToken string) (*social.AccountInfo, error) {
	var me struct {
		ID                       string `json:"id"`
		Username                 string `json:"username"`
		Name                     string `json:"name"`
		ThreadsProfilePictureURL string `json:"threads_profile_picture_url"`
	}
	endpoint := a.endpoint("/me", url.Values{"fields": {"id,username,name,threads_profile_picture_url"}})
	if err := a.GetJSON(ctx, endpoint, accessToken, "account_info", &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, social.NewPlatformError(social.PlatformThreads, "account_info", 0, "profile without id", nil)
	}

	name := me.Name
	if name == "" {
		name = me.Username
	}
	return &social.AccountInfo{
		ID:      me.ID,
		Name:    name,
		Handle:  me.Username,
		Picture: me.ThreadsProfilePictureURL,
	}, nil
}

// PublishPost implements social.Adapter. A container is created under /me and
// then published, several media items form a carousel.
func (a *Adapter) PublishPost(ctx context.Context, accessToken string, post social.Post) (*social.PublishResult, error) {
	text := post.Content
	if post.Link != "" && !strings.Contains(text, post.Link) {
		text = strings.TrimSpace(text + "\n" + post.Link)
	}

	var (
		creationID string
		err        error
	)
	switch len(post.Media) {
	case 0:
		creationID, err = a.createContainer(ctx, accessToken, url.Values{
			"media_type": {"TEXT"},
			"text":       {text},
		}, false)
	case 1:
		form := mediaForm(post.Media[0])
		form.Set("text", text)
		creationID, err = a.createContainer(ctx, accessToken, form, post.Media[0].IsVideo())
	default:
		creationID, err = a.createCarousel(ctx, accessToken, post.Media, text)
	}
	if err != nil {
		return nil, err
	}

	var published graph.IDResponse
	form := url.Values{"creation_id": {creationID}}
	if err := a.PostForm(ctx, a.endpoint("/me/threads_publish", nil), accessToken, "publish", form, &published); err != nil {
		return nil, err
	}
	if published.ID == "" {
		return nil, social.NewPlatformError(social.PlatformThreads, "publish", 0, "missing thread id in response", nil)
	}

	return &social.PublishResult{
		PostID:      published.ID,
		URL:         a.permalink(ctx, accessToken, published.ID),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func mediaForm(media social.MediaItem) url.Values {
	if media.IsVideo() {
		return url.Values{"media_type": {"VIDEO"}, "video_url": {media.URL}}
	}
	return url.Values{"media_type": {"IMAGE"}, "image_url": {media.URL}}
}

func (a *Adapter) createContainer(ctx context.Context, accessToken string, form url.Values, wait bool) (string, error) {
	var container graph.IDResponse
	if err := a.PostForm(ctx, a.endpoint("/me/threads", nil), accessToken, "create_container", form, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", social.NewPlatformError(social.PlatformThreads, "create_container", 0, "missing container id in response", nil)
	}
	if wait {
		if err := a.poller.Wait(ctx, a.BaseAdapter, a.endpoint("/"+container.ID, nil), accessToken); err != nil {
			return "", err
		}
	}
	return container.ID, nil
}

func (a *Adapter) createCarousel(ctx context.Context, accessToken string, media []social.MediaItem, text string) (string, error) {
	children := make([]string, 0, len(media))
	for _, item := range media {
		form := mediaForm(item)
		form.Set("is_carousel_item", "true")
		id, err := a.createContainer(ctx, accessToken, form, item.IsVideo())
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	return a.createContainer(ctx, accessToken, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"text":       {text},
	}, false)
}

func (a *Adapter) permalink(ctx context.Context, accessToken, threadID string) string {
	var resp struct {
		Permalink string `json:"permalink"`
	}
	endpoint := a.endpoint("/"+threadID, url.Values{"fields": {"permalink"}})
	if err := a.GetJSON(ctx, endpoint, accessToken, "permalink", &resp); err != nil || resp.Permalink == "" {
		a.Logger().Debug("permalink lookup failed", "thread_id", threadID, "error", err)
		return a.config.WebURL + "/"
	}
	return resp.Permalink
}

// DeletePost implements social.Adapter.
func (a *Adapter) DeletePost(_ context.Context, _, _ string) error {
	return a.NotImplemented("delete")
}

// GetAnalytics implements social.Adapter.
func (a *Adapter) GetAnalytics(ctx context.Context, accessToken, postID string) social.Analytics {
	var resp struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value int64 `json:"value"`
			} `json:"values"`
			TotalValue *struct {
				Value int64 `json:"value"`
			} `json:"total_value"`
		} `json:"data"`
	}
	endpoint := a.endpoint("/"+url.PathEscape(postID)+"/insights", url.Values{
		"metric": {"views,likes,replies,reposts,quotes"},
	})
	if err := a.GetJSON(ctx, endpoint, accessToken, "analytics", &resp); err != nil {
		return a.ZeroAnalytics(postID, err)
	}

	metrics := make(map[string]int64, len(resp.Data))
	for _, m := range resp.Data {
		switch {
		case m.TotalValue != nil:
			metrics[m.Name] = m.TotalValue.Value
		case len(m.Values) > 0:
			metrics[m.Name] = m.Values[0].Value
		}
	}

	return social.Analytics{
		Views:    metrics["views"],
		Likes:    metrics["likes"],
		Shares:   metrics["reposts"] + metrics["quotes"],
		Comments: metrics["replies"],
	}
}
