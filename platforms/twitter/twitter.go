package twitter

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
	defaultAuthURL  = "https://twitter.com/i/oauth2/authorize"
	defaultTokenURL = "https://api.twitter.com/2/oauth2/token"
	defaultAPIURL   = "https://api.twitter.com"
	defaultWebURL   = "https://x.com"
)

// Config holds X/Twitter endpoints and transport settings.
type Config struct {
	Scopes []string

	AuthURL  string
	TokenURL string
	APIURL   string
	WebURL   string

	HTTPClient *http.Client
	Logger     social.Logger
}

// DefaultScopes returns the default scopes. offline.access is required for refresh tokens.
func DefaultScopes() []string {
	return []string{"tweet.read", "tweet.write", "users.read", "offline.access"}
}

// Limits returns the X/Twitter content limits.
func Limits() social.PlatformLimits {
	return social.PlatformLimits{
		MaxContentLength: 280,
		MaxMediaCount:    4,
		SupportsVideo:    true,
		SupportsImages:   true,
		AllowedMediaTypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/webp", "video/mp4",
		},
	}
}

// Adapter implements social.Adapter for X/Twitter using OAuth 2.0 with PKCE.
type Adapter struct {
	*social.BaseAdapter
	config Config
}

// New creates a Twitter adapter.
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
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.WebURL = strings.TrimRight(cfg.WebURL, "/")

	return &Adapter{
		BaseAdapter: social.NewBaseAdapter(social.PlatformTwitter, Limits(), credentials,
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
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}, nil
}

// GenerateAuthURL implements social.Adapter. The returned CodeVerifier must
// be handed back to Authenticate.
func (a *Adapter) GenerateAuthURL(ctx context.Context, redirectURI string) (*social.AuthRequest, error) {
	oc, err := a.oauthConfig(ctx, redirectURI)
	if err != nil {
		return nil, err
	}

	state := a.NewState()
	verifier := oauth2.GenerateVerifier()
	return &social.AuthRequest{
		URL:          oc.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State:        state,
		CodeVerifier: verifier,
	}, nil
}

// Authenticate implements social.Adapter.
func (a *Adapter) Authenticate(ctx context.Context, code, redirectURI string, opts ...social.ExchangeOption) (*social.TokenDetails, error) {
	exchange := social.ApplyExchangeOptions(opts...)
	if exchange.CodeVerifier == "" {
		return nil, social.NewPlatformError(social.PlatformTwitter, "authenticate", http.StatusBadRequest,
			"PKCE code verifier is required", nil)
	}

	oc, err := a.oauthConfig(ctx, redirectURI)
	if err != nil {
		return nil, err
	}

	token, err := oc.Exchange(a.OAuthContext(ctx), code, oauth2.VerifierOption(exchange.CodeVerifier))
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

// RefreshToken implements social.Adapter. Twitter rotates refresh tokens on
// every use, the returned one replaces the stored value.
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
		RefreshToken: token.RefreshToken,
		ExpiresIn:    social.ExpiresIn(token),
	}, nil
}

// GetAccountInfo implements social.Adapter.
func (a *Adapter) GetAccountInfo(ctx context.Context, accessToken string) (*social.AccountInfo, error) {
	var resp userResponse
	endpoint := a.config.APIURL + "/2/users/me?user.fields=profile_image_url"
	if err := a.GetJSON(ctx, endpoint, accessToken, "account_info", &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, social.NewPlatformError(social.PlatformTwitter, "account_info", 0, "profile without id", nil)
	}

	return &social.AccountInfo{
		ID:      resp.Data.ID,
		Name:    resp.Data.Name,
		Handle:  resp.Data.Username,
		Picture: resp.Data.ProfileImageURL,
	}, nil
}

// PublishPost implements social.Adapter. Media upload goes through the v1.1
// upload endpoint which is not supported, posts with media are rejected.
func (a *Adapter) PublishPost(ctx context.Context, accessToken string, post social.Post) (*social.PublishResult, error) {
	if len(post.Media) > 0 {
		return nil, a.NotImplemented("media upload")
	}

	text := post.Content
	if post.Link != "" && !strings.Contains(text, post.Link) {
		text = strings.TrimSpace(text + " " + post.Link)
	}

	payload := tweetRequest{Text: text}
	if replyTo := post.Option("reply_to", ""); replyTo != "" {
		payload.Reply = &tweetReply{InReplyToTweetID: replyTo}
	}

	var resp tweetResponse
	if err := a.PostJSON(ctx, a.config.APIURL+"/2/tweets", accessToken, "publish", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, social.NewPlatformError(social.PlatformTwitter, "publish", 0, "missing tweet id in response", nil)
	}

	return &social.PublishResult{
		PostID:      resp.Data.ID,
		URL:         a.config.WebURL + "/i/web/status/" + resp.Data.ID,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// DeletePost implements social.Adapter.
func (a *Adapter) DeletePost(ctx context.Context, accessToken, postID string) error {
	req, err := a.NewRequest(ctx, http.MethodDelete, a.config.APIURL+"/2/tweets/"+url.PathEscape(postID), accessToken, nil)
	if err != nil {
		return a.WrapError("delete", err)
	}

	var resp deleteResponse
	if err := a.DoJSON(req, "delete", &resp); err != nil {
		return err
	}
	if !resp.Data.Deleted {
		return social.NewPlatformError(social.PlatformTwitter, "delete", 0, "tweet was not deleted", nil)
	}
	return nil
}

// GetAnalytics implements social.Adapter.
func (a *Adapter) GetAnalytics(ctx context.Context, accessToken, postID string) social.Analytics {
	var resp metricsResponse
	endpoint := a.config.APIURL + "/2/tweets/" + url.PathEscape(postID) + "?tweet.fields=public_metrics"
	if err := a.GetJSON(ctx, endpoint, accessToken, "analytics", &resp); err != nil {
		return a.ZeroAnalytics(postID, err)
	}

	m := resp.Data.PublicMetrics
	return social.Analytics{
		Views:       m.ImpressionCount,
		Likes:       m.LikeCount,
		Shares:      m.RetweetCount + m.QuoteCount,
		Comments:    m.ReplyCount,
		Impressions: social.Int64(m.ImpressionCount),
	}
}

type userResponse struct {
	Data struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type deleteResponse struct {
	Data struct {
		Deleted bool `json:"deleted"`
	} `json:"data"`
}

type metricsResponse struct {
	Data struct {
		ID            string `json:"id"`
		PublicMetrics struct {
			RetweetCount    int64 `json:"retweet_count"`
			ReplyCount      int64 `json:"reply_count"`
			LikeCount       int64 `json:"like_count"`
			QuoteCount      int64 `json:"quote_count"`
			ImpressionCount int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}
