package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL   = "https://www.reddit.com/api/v1/authorize"
	defaultTokenURL  = "https://www.reddit.com/api/v1/access_token"
	defaultAPIURL    = "https://oauth.reddit.com"
	defaultWebURL    = "https://www.reddit.com"
	defaultUserAgent = "go-social/1.0"
)

// Config holds Reddit endpoints and transport settings.
type Config struct {
	Scopes []string

	AuthURL  string
	TokenURL string
	APIURL   string
	WebURL   string

	// UserAgent is sent on every call, Reddit throttles generic agents.
	UserAgent string

	HTTPClient *http.Client
	Logger     social.Logger
}

// DefaultScopes returns the default Reddit scopes.
func DefaultScopes() []string {
	return []string{"identity", "submit", "edit", "read", "history"}
}

// Limits returns the Reddit content limits.
func Limits() social.PlatformLimits {
	return social.PlatformLimits{
		MaxContentLength:  40000,
		MaxMediaCount:     1,
		MaxTitleLength:    300,
		SupportsVideo:     false,
		SupportsImages:    true,
		AllowedMediaTypes: []string{"image/jpeg", "image/png", "image/gif"},
	}
}

// Adapter implements social.Adapter for Reddit.
type Adapter struct {
	*social.BaseAdapter
	config Config
}

// New creates a Reddit adapter.
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
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.WebURL == "" {
		cfg.WebURL = defaultWebURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.WebURL = strings.TrimRight(cfg.WebURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: social.DefaultHTTPTimeout}
	}
	withAgent := *client
	withAgent.Transport = &userAgentTransport{agent: cfg.UserAgent, next: client.Transport}

	return &Adapter{
		BaseAdapter: social.NewBaseAdapter(social.PlatformReddit, Limits(), credentials,
			social.WithHTTPClient(&withAgent),
			social.WithLogger(cfg.Logger),
		),
		config: cfg,
	}
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return next.RoundTrip(clone)
}

func (a *Adapter) oauthConfig(ctx context.Context, redirectURI string) (*oauth2.Config, error) {
	creds, err := a.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       a.config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.config.AuthURL,
			TokenURL:  a.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}, nil
}

// GenerateAuthURL implements social.Adapter. duration=permanent asks Reddit
// for a refresh token.
func (a *Adapter) GenerateAuthURL(ctx context.Context, redirectURI string) (*social.AuthRequest, error) {
	oc, err := a.oauthConfig(ctx, redirectURI)
	if err != nil {
		return nil, err
	}
	state := a.NewState()
	return &social.AuthRequest{
		URL:   oc.AuthCodeURL(state, oauth2.SetAuthURLParam("duration", "permanent")),
		State: state,
	}, nil
}

// Authenticate implements social.Adapter.
func (a *Adapter) Authenticate(ctx context.Context, code, redirectURI string, _ ...social.ExchangeOption) (*social.TokenDetails, error) {
	oc, err := a.oauthConfig(ctx, redirectURI)
	if err != nil {
		return nil, err
	}

	token, err := oc.Exchange(a.OAuthContext(ctx), code)
	if err != nil {
		return nil, a.WrapError("authenticate", err)
	}

	info, err := a.GetAccountInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &social.TokenDetails{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    social.ExpiresIn(token),
		PlatformID:   info.ID,
		Name:         info.Name,
		Handle:       info.Handle,
		Picture:      info.Picture,
	}, nil
}

// RefreshToken implements social.Adapter. Reddit refresh tokens are stable,
// the one passed in is returned for persistence.
func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (*social.TokenDetails, error) {
	oc, err := a.oauthConfig(ctx, "")
	if err != nil {
		return nil, err
	}

	token, err := oc.TokenSource(a.OAuthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, a.WrapError("refresh_token", err)
	}

	return &social.TokenDetails{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    social.ExpiresIn(token),
	}, nil
}

// GetAccountInfo implements social.Adapter.
func (a *Adapter) GetAccountInfo(ctx context.Context, accessToken string) (*social.AccountInfo, error) {
	var me meResponse
	if err := a.GetJSON(ctx, a.config.APIURL+"/api/v1/me", accessToken, "account_info", &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, social.NewPlatformError(social.PlatformReddit, "account_info", 0, "profile without id", nil)
	}

	picture := me.SnoovatarImg
	if picture == "" {
		picture = me.IconImg
	}
	if i := strings.Index(picture, "?"); i >= 0 {
		picture = picture[:i]
	}

	return &social.AccountInfo{
		ID:      me.ID,
		Name:    me.Name,
		Handle:  "u/" + me.Name,
		Picture: picture,
	}, nil
}

// ValidatePost adds the subreddit requirement to the shared limit checks.
func (a *Adapter) ValidatePost(post social.Post) social.ValidationResult {
	result := a.BaseAdapter.ValidatePost(post)
	if strings.TrimPrefix(post.Option("subreddit", ""), "r/") == "" {
		result.Errors = append(result.Errors, "Subreddit is required")
		result.IsValid = false
	}
	return result
}

// PublishPost implements social.Adapter. The target subreddit comes from the
// "subreddit" option. Posts with a link or an image are submitted as link posts.
func (a *Adapter) PublishPost(ctx context.Context, accessToken string, post social.Post) (*social.PublishResult, error) {
	subreddit := strings.TrimPrefix(post.Option("subreddit", ""), "r/")
	if subreddit == "" {
		return nil, social.NewPlatformError(social.PlatformReddit, "publish", http.StatusBadRequest,
			"subreddit option is required", nil)
	}

	title := post.Title
	if title == "" {
		title = truncate(firstLine(post.Content), Limits().MaxTitleLength)
	}

	form := url.Values{
		"api_type": {"json"},
		"sr":       {subreddit},
		"title":    {title},
	}

	link := post.Link
	if link == "" && len(post.Media) > 0 {
		link = post.Media[0].URL
	}
	if link != "" {
		form.Set("kind", "link")
		form.Set("url", link)
	} else {
		form.Set("kind", "self")
		form.Set("text", post.Content)
	}
	if flair := post.Option("flair_id", ""); flair != "" {
		form.Set("flair_id", flair)
	}

	var resp submitResponse
	if err := a.PostForm(ctx, a.config.APIURL+"/api/submit", accessToken, "publish", form, &resp); err != nil {
		return nil, err
	}
	if msg := resp.JSON.errorMessage(); msg != "" {
		return nil, social.NewPlatformError(social.PlatformReddit, "publish", http.StatusBadRequest, msg, nil)
	}

	postID := resp.JSON.Data.Name
	if postID == "" && resp.JSON.Data.ID != "" {
		postID = "t3_" + resp.JSON.Data.ID
	}
	if postID == "" {
		return nil, social.NewPlatformError(social.PlatformReddit, "publish", 0, "missing post id in response", nil)
	}

	postURL := resp.JSON.Data.URL
	if postURL == "" {
		postURL = fmt.Sprintf("%s/comments/%s", a.config.WebURL, strings.TrimPrefix(postID, "t3_"))
	}

	return &social.PublishResult{
		PostID:      postID,
		URL:         postURL,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// DeletePost implements social.Adapter.
func (a *Adapter) DeletePost(ctx context.Context, accessToken, postID string) error {
	form := url.Values{"id": {fullname(postID)}}
	return a.PostForm(ctx, a.config.APIURL+"/api/del", accessToken, "delete", form, nil)
}

// GetAnalytics implements social.Adapter.
func (a *Adapter) GetAnalytics(ctx context.Context, accessToken, postID string) social.Analytics {
	var listing infoResponse
	endpoint := a.config.APIURL + "/api/info?id=" + url.QueryEscape(fullname(postID))
	if err := a.GetJSON(ctx, endpoint, accessToken, "analytics", &listing); err != nil {
		return a.ZeroAnalytics(postID, err)
	}
	if len(listing.Data.Children) == 0 {
		return a.ZeroAnalytics(postID, fmt.Errorf("post %s not found", postID))
	}

	item := listing.Data.Children[0].Data
	out := social.Analytics{
		Likes:    item.Ups,
		Shares:   item.NumCrossposts,
		Comments: item.NumComments,
	}
	if item.ViewCount != nil {
		out.Views = *item.ViewCount
	}
	return out
}

func fullname(postID string) string {
	if strings.HasPrefix(postID, "t3_") {
		return postID
	}
	return "t3_" + postID
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

type meResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IconImg      string `json:"icon_img"`
	SnoovatarImg string `json:"snoovatar_img"`
}

type submitResponse struct {
	JSON submitJSON `json:"json"`
}

type submitJSON struct {
	Errors [][]any `json:"errors"`
	Data   struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"data"`
}

func (s submitJSON) errorMessage() string {
	if len(s.Errors) == 0 || len(s.Errors[0]) == 0 {
		return ""
	}
	first := s.Errors[0]
	if len(first) > 1 {
		if msg, ok := first[1].(string); ok && msg != "" {
			return msg
		}
	}
	if code, ok := first[0].(string); ok {
		return code
	}
	return "submission rejected"
}

type infoResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Ups           int64  `json:"ups"`
				Score         int64  `json:"score"`
				NumComments   int64  `json:"num_comments"`
				NumCrossposts int64  `json:"num_crossposts"`
				ViewCount     *int64 `json:"view_count"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}
