package linkedin

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://www.linkedin.com/oauth/v2/authorization"
	defaultTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	defaultAPIURL   = "https://api.linkedin.com"
)

// Config holds LinkedIn endpoints and transport settings.
type Config struct {
	Scopes []string

	AuthURL  string
	TokenURL string
	APIURL   string

	HTTPClient *http.Client
	Logger     social.Logger
}

// DefaultScopes returns the default LinkedIn scopes.
func DefaultScopes() []string {
	return []string{"openid", "profile", "email", "w_member_social"}
}

// Limits returns the LinkedIn content limits.
func Limits() social.PlatformLimits {
	return social.PlatformLimits{
		MaxContentLength: 3000,
		MaxMediaCount:    9,
		SupportsVideo:    true,
		SupportsImages:   true,
		AllowedMediaTypes: []string{
			"image/jpeg", "image/png", "image/gif", "video/mp4",
		},
	}
}

// Adapter implements social.Adapter for LinkedIn.
type Adapter struct {
	*social.BaseAdapter
	config Config
}

// New creates a LinkedIn adapter.
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
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Adapter{
		BaseAdapter: social.NewBaseAdapter(social.PlatformLinkedIn, Limits(), credentials,
			social.WithHTTPClient(cfg.HTTPClient),
			social.WithLogger(cfg.Logger),
		),
		config: cfg,
	}
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
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

// GenerateAuthURL implements social.Adapter.
func (a *Adapter) GenerateAuthURL(ctx context.Context, redirectURI string) (*social.AuthRequest, error) {
	oc, err := a.oauthConfig(ctx, redirectURI)
	if err != nil {
		return nil, err
	}
	state := a.NewState()
	return &social.AuthRequest{
		URL:   oc.AuthCodeURL(state),
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

// RefreshToken implements social.Adapter. LinkedIn rotates the refresh token
// only for some programs, the previous one is kept when none is returned.
func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (*social.TokenDetails, error) {
	oc, err := a.oauthConfig(ctx, "")
	if err != nil {
		return nil, err
	}

	token, err := oc.TokenSource(a.OAuthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, a.WrapError("refresh_token", err)
	}

	next := token.RefreshToken
	if next == "" {
		next = refreshToken
	}
	return &social.TokenDetails{
		AccessToken:  token.AccessToken,
		RefreshToken: next,
		ExpiresIn:    social.ExpiresIn(token),
	}, nil
}

// GetAccountInfo implements social.Adapter.
func (a *Adapter) GetAccountInfo(ctx context.Context, accessToken string) (*social.AccountInfo, error) {
	var profile userInfo
	if err := a.GetJSON(ctx, a.config.APIURL+"/v2/userinfo", accessToken, "account_info", &profile); err != nil {
		return nil, err
	}
	if profile.Sub == "" {
		return nil, social.NewPlatformError(social.PlatformLinkedIn, "account_info", 0, "profile without subject", nil)
	}
	return profile.toAccountInfo(), nil
}

// PublishPost implements social.Adapter. Media URLs are shared as article
// links, the first one is used when the post has no link.
func (a *Adapter) PublishPost(ctx context.Context, accessToken string, post social.Post) (*social.PublishResult, error) {
	info, err := a.GetAccountInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	payload := newShare("urn:li:person:"+info.ID, post)

	req, err := a.jsonRequest(ctx, http.MethodPost, a.config.APIURL+"/v2/ugcPosts", accessToken, payload)
	if err != nil {
		return nil, a.WrapError("publish", err)
	}

	var created ugcPostResponse
	if err := a.DoJSON(req, "publish", &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, social.NewPlatformError(social.PlatformLinkedIn, "publish", 0, "missing post id in response", nil)
	}

	return &social.PublishResult{
		PostID:      created.ID,
		URL:         "https://www.linkedin.com/feed/update/" + created.ID,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// DeletePost implements social.Adapter.
func (a *Adapter) DeletePost(ctx context.Context, accessToken, postID string) error {
	req, err := a.NewRequest(ctx, http.MethodDelete,
		a.config.APIURL+"/v2/ugcPosts/"+url.PathEscape(postID), accessToken, nil)
	if err != nil {
		return a.WrapError("delete", err)
	}
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	return a.DoJSON(req, "delete", nil)
}

// GetAnalytics implements social.Adapter.
func (a *Adapter) GetAnalytics(ctx context.Context, accessToken, postID string) social.Analytics {
	var actions socialActions
	endpoint := a.config.APIURL + "/v2/socialActions/" + url.PathEscape(postID)
	if err := a.GetJSON(ctx, endpoint, accessToken, "analytics", &actions); err != nil {
		return a.ZeroAnalytics(postID, err)
	}

	return social.Analytics{
		Likes:    actions.LikesSummary.TotalLikes,
		Comments: actions.CommentsSummary.AggregatedTotalComments,
	}
}

func (a *Adapter) jsonRequest(ctx context.Context, method, endpoint, accessToken string, payload any) (*http.Request, error) {
	body, err := encode(payload)
	if err != nil {
		return nil, err
	}
	req, err := a.NewRequest(ctx, method, endpoint, accessToken, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	return req, nil
}
