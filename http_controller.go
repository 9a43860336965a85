package social

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	validation "github.com/go-ozzo/ozzo-validation"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// UserIDResolver extracts the authenticated user ID from a request.
type UserIDResolver func(ctx router.Context) string

// ConfigWriter persists OAuth application credentials.
type ConfigWriter interface {
	SaveConfig(ctx context.Context, platform Platform, clientID, clientSecret string) error
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// BaseURL is the public origin used to build callback URLs, e.g. "https://app.example".
	BaseURL string

	// PathPrefix for routes (default: "/social")
	PathPrefix string

	// UserKey is the router locals key holding the user ID (default: "user_id")
	UserKey string

	// UserID overrides the locals based lookup.
	UserID UserIDResolver

	// SuccessRedirect is where the callback lands after connecting an account
	SuccessRedirect string

	// ErrorRedirect is where the callback lands when connecting fails
	ErrorRedirect string
}

// HTTPController exposes account connection routes.
type HTTPController struct {
	registry *Registry
	manager  *OAuthManager
	configs  ConfigWriter
	logger   Logger
	config   HTTPConfig
}

// NewHTTPController creates the controller. configs may be nil, in which case
// the OAuth config route answers 501.
func NewHTTPController(registry *Registry, manager *OAuthManager, configs ConfigWriter, cfg HTTPConfig, logger Logger) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/social"
	}
	if cfg.UserKey == "" {
		cfg.UserKey = "user_id"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = SettingsPath
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = SettingsPath
	}

	return &HTTPController{
		registry: registry,
		manager:  manager,
		configs:  configs,
		logger:   normalizeLogger(logger),
		config:   cfg,
	}
}

// RegisterRoutes registers the controller routes on group.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/platforms", c.ListPlatforms)
	group.Get("/accounts", c.ListAccounts)
	group.Delete("/accounts/:id", c.DisconnectAccount)
	group.Put("/oauth-configs/:platform", c.SaveOAuthConfig)
	group.Get("/:platform/connect", c.Connect)
	group.Get("/:platform/callback", c.Callback)
	group.Post("/:platform/validate", c.ValidatePost)
}

// CallbackURL returns the redirect URI registered with the platform.
func (c *HTTPController) CallbackURL(platform Platform) string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	prefix := "/" + strings.Trim(c.config.PathPrefix, "/")
	return base + prefix + "/" + string(platform) + "/callback"
}

// ListPlatforms returns the registered platforms with their limits.
func (c *HTTPController) ListPlatforms(ctx router.Context) error {
	platforms := c.registry.GetAvailablePlatforms()
	out := make([]map[string]any, 0, len(platforms))
	for _, p := range platforms {
		adapter, err := c.registry.GetAdapter(p)
		if err != nil {
			continue
		}
		out = append(out, map[string]any{
			"platform": string(p),
			"name":     p.DisplayName(),
			"limits":   adapter.PlatformLimits(),
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"platforms": out,
	})
}

// Connect redirects the user to the platform authorization page.
func (c *HTTPController) Connect(ctx router.Context) error {
	userID := c.userID(ctx)
	if userID == "" {
		return c.unauthorized(ctx)
	}

	adapter, err := c.adapter(ctx)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	result, err := c.manager.GenerateAuthURL(ctx.Context(), adapter, c.CallbackURL(adapter.Platform()), userID)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	return ctx.Redirect(result.URL, http.StatusTemporaryRedirect)
}

// Callback completes the authorization flow.
func (c *HTTPController) Callback(ctx router.Context) error {
	platform := Platform(ctx.Param("platform"))

	if errCode := ctx.Query("error"); errCode != "" {
		redirectURL := appendQueryParam(c.config.ErrorRedirect, "oauth_error", errCode)
		if desc := ctx.Query("error_description"); desc != "" {
			redirectURL = appendQueryParam(redirectURL, "desc", desc)
		}
		redirectURL = appendQueryParam(redirectURL, "platform", string(platform))
		return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
	}

	userID := c.userID(ctx)
	if userID == "" {
		return c.unauthorized(ctx)
	}

	adapter, err := c.adapter(ctx)
	if err != nil {
		return c.redirectError(ctx, platform, err)
	}

	result := c.manager.Authenticate(ctx.Context(), adapter, ctx.Query("code"), ctx.Query("state"),
		c.CallbackURL(adapter.Platform()), userID)
	if !result.Success {
		return c.redirectError(ctx, platform, result.Err)
	}

	redirectURL := appendQueryParam(c.config.SuccessRedirect, "connected", string(platform))
	redirectURL = appendQueryParam(redirectURL, "account_id", result.AccountID)
	return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
}

// ListAccounts returns the active accounts of the current user without tokens.
func (c *HTTPController) ListAccounts(ctx router.Context) error {
	userID := c.userID(ctx)
	if userID == "" {
		return c.unauthorized(ctx)
	}

	accounts, err := c.manager.GetActiveAccounts(ctx.Context(), userID)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	response := make([]map[string]any, 0, len(accounts))
	for _, acc := range accounts {
		item := map[string]any{
			"id":          acc.ID,
			"platform":    string(acc.Platform),
			"platform_id": acc.PlatformID,
			"name":        acc.Name,
			"handle":      acc.Handle,
			"picture":     acc.Picture,
			"retry_count": acc.RetryCount,
			"created_at":  acc.CreatedAt,
		}
		if acc.TokenExpiresAt != nil {
			item["token_expires_at"] = *acc.TokenExpiresAt
		}
		if acc.LastError != nil {
			item["last_error"] = *acc.LastError
		}
		response = append(response, item)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"accounts": response,
	})
}

// DisconnectAccount deactivates one of the current user's accounts.
func (c *HTTPController) DisconnectAccount(ctx router.Context) error {
	userID := c.userID(ctx)
	if userID == "" {
		return c.unauthorized(ctx)
	}

	accountID := ctx.Param("id")
	accounts, err := c.manager.GetActiveAccounts(ctx.Context(), userID)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	owned := false
	for _, acc := range accounts {
		if acc.ID == accountID {
			owned = true
			break
		}
	}
	if !owned {
		return c.errorJSON(ctx, ErrAccountNotFound)
	}

	if err := c.manager.DisconnectAccount(ctx.Context(), accountID); err != nil {
		return c.errorJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "disconnected",
	})
}

// ValidatePost validates a post payload against the platform limits.
func (c *HTTPController) ValidatePost(ctx router.Context) error {
	adapter, err := c.adapter(ctx)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	var post Post
	if err := ctx.Bind(&post); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "invalid post payload",
		})
	}

	return ctx.JSON(router.StatusOK, adapter.ValidatePost(post))
}

// OAuthConfigRequest is the payload of the OAuth config route.
type OAuthConfigRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Validate implements validation.Validatable.
func (r OAuthConfigRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ClientID, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.ClientSecret, validation.Required, validation.Length(1, 1024)),
	)
}

// SaveOAuthConfig stores OAuth application credentials for a platform.
func (c *HTTPController) SaveOAuthConfig(ctx router.Context) error {
	if c.userID(ctx) == "" {
		return c.unauthorized(ctx)
	}
	if c.configs == nil {
		return c.errorJSON(ctx, NotImplementedError(Platform(ctx.Param("platform")), "oauth config storage"))
	}

	platform, ok := ParsePlatform(ctx.Param("platform"))
	if !ok {
		return c.errorJSON(ctx, c.notRegistered(platform))
	}

	var req OAuthConfigRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "invalid oauth config payload",
		})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": err,
		})
	}

	if err := c.configs.SaveConfig(ctx.Context(), platform, req.ClientID, req.ClientSecret); err != nil {
		return c.errorJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status":   "saved",
		"platform": string(platform),
	})
}

func (c *HTTPController) adapter(ctx router.Context) (Adapter, error) {
	platform, ok := ParsePlatform(ctx.Param("platform"))
	if !ok {
		return nil, c.notRegistered(platform)
	}
	return c.registry.GetAdapter(platform)
}

func (c *HTTPController) notRegistered(platform Platform) error {
	_, err := c.registry.GetAdapter(platform)
	if err == nil {
		return ErrAdapterNotRegistered
	}
	return err
}

func (c *HTTPController) userID(ctx router.Context) string {
	if c.config.UserID != nil {
		return c.config.UserID(ctx)
	}

	switch v := ctx.Locals(c.config.UserKey).(type) {
	case string:
		return v
	case interface{ GetUserID() string }:
		return v.GetUserID()
	}
	return ""
}

func (c *HTTPController) unauthorized(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, map[string]string{
		"error": "authentication required",
	})
}

func (c *HTTPController) redirectError(ctx router.Context, platform Platform, err error) error {
	c.logger.Warn("oauth callback failed", "platform", platform, "error", err)

	redirectURL := appendQueryParam(c.config.ErrorRedirect, "error", errorTextCode(err))
	redirectURL = appendQueryParam(redirectURL, "platform", string(platform))
	return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
}

func (c *HTTPController) errorJSON(ctx router.Context, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		c.logger.Error("social request failed", "error", err)
	}
	return ctx.JSON(status, map[string]string{
		"error": err.Error(),
		"code":  errorTextCode(err),
	})
}

func errorStatus(err error) int {
	var rich *goerrors.Error
	if errors.As(err, &rich) && rich.Code > 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

func errorTextCode(err error) string {
	var rich *goerrors.Error
	if errors.As(err, &rich) && rich.TextCode != "" {
		return rich.TextCode
	}
	return "social_error"
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
