package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-social"
	"github.com/goliatone/go-social/activitymap"
	"github.com/goliatone/go-social/platforms/registry"
	"github.com/goliatone/go-social/redisstore"
	"github.com/spf13/cobra"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Serve the platform connection routes: connect, callback, accounts and OAuth app configuration.

User scoped routes read the caller from the header named by server.user_header
(SOCIAL_SERVER_USER_HEADER), which must be set by a trusted proxy. When it is
empty every user scoped route answers 401.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address, overrides server.addr")

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}

	box, err := a.cipher()
	if err != nil {
		return err
	}
	creds := a.credentials(box)

	states, closeStates, err := stateStore(ctx, a)
	if err != nil {
		return err
	}
	defer closeStates()

	platforms, err := a.cfg.EnabledPlatforms()
	if err != nil {
		return err
	}

	reg := registry.RegisterAll(social.NewRegistry(), registry.Deps{
		Credentials:     creds,
		HTTPClient:      &http.Client{Timeout: a.cfg.OAuth.HTTPTimeout},
		Logger:          a.logger,
		RedditUserAgent: a.cfg.Reddit.UserAgent,
		Only:            platforms,
	})

	manager := social.NewOAuthManager(
		a.repos.Accounts(),
		states,
		box,
		social.WithManagerLogger(a.logger.With("component", "oauth")),
		social.WithStateTTL(a.cfg.OAuth.StateTTL),
		social.WithRefreshLeeway(a.cfg.OAuth.RefreshLeeway),
		social.WithActivitySink(activitymap.Sink(func(_ context.Context, record activitymap.Normalized) error {
			a.logger.Info("activity",
				"verb", record.Verb,
				"actor_id", record.ActorID,
				"object_id", record.ObjectID,
				"metadata", record.Metadata,
			)
			return nil
		})),
	)

	httpCfg := social.HTTPConfig{
		BaseURL:         a.cfg.Server.BaseURL,
		PathPrefix:      a.cfg.Server.PathPrefix,
		SuccessRedirect: a.cfg.Server.SuccessRedirect,
		ErrorRedirect:   a.cfg.Server.ErrorRedirect,
	}
	httpCfg.UserID = headerUserResolver(a.cfg.Server.UserHeader)
	if httpCfg.UserID == nil {
		a.logger.Warn("server.user_header is empty, user scoped routes will answer 401")
	}

	controller := social.NewHTTPController(reg, manager, creds, httpCfg, a.logger.With("component", "http"))

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			UnescapePath:          true,
			DisableStartupMessage: true,
		})
	})
	controller.RegisterRoutes(srv.Router().Group(httpCfg.PathPrefix))

	a.logger.Info("starting server",
		"addr", a.cfg.Server.Addr,
		"prefix", httpCfg.PathPrefix,
		"platforms", reg.GetAvailablePlatforms(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(a.cfg.Server.Addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		a.logger.Info("shutting down", "signal", s.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// headerUserResolver reads the user ID from the named request header. It
// returns nil when header is empty.
func headerUserResolver(header string) social.UserIDResolver {
	if header == "" {
		return nil
	}
	return func(ctx router.Context) string {
		return ctx.Header(header)
	}
}

// stateStore picks Redis when configured, otherwise the database table.
func stateStore(ctx context.Context, a *app) (social.StateStore, func(), error) {
	if a.cfg.Redis.Addr == "" {
		return a.repos.States(), func() {}, nil
	}

	client, err := redisstore.NewClient(ctx, redisstore.Config{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}

	a.logger.Info("using redis state store", "addr", a.cfg.Redis.Addr)
	return redisstore.New(client, a.cfg.Redis.Prefix), func() { _ = client.Close() }, nil
}
