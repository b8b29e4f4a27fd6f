// Command webapp serves the form management webapp: OIDC login, session
// management and the server rendered management pages.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/cccteam/logger"
	"github.com/go-playground/errors/v5"
	"github.com/gorilla/securecookie"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gemeente-forms/management/internal/access"
	"github.com/gemeente-forms/management/internal/apiclient"
	"github.com/gemeente-forms/management/internal/config"
	"github.com/gemeente-forms/management/internal/oidc"
	"github.com/gemeente-forms/management/internal/permission"
	"github.com/gemeente-forms/management/internal/secrets"
	"github.com/gemeente-forms/management/internal/session"
	"github.com/gemeente-forms/management/internal/sessionstorage"
	"github.com/gemeente-forms/management/internal/webapp"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "webapp",
	Short:         "Form management webapp",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webapp server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("webapp %s (commit %s, built %s)\n", version, commit, buildDate)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	profiles, err := config.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return err
	}

	secureCookie, err := newSecureCookie(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := session.NewManager(store, secureCookie, cfg.SessionTTL)

	permStore, closePerm, err := newPermissionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePerm()

	secretStore := secrets.EnvStore{}

	authenticators := make([]oidc.Authenticator, 0, len(profiles))
	for _, p := range profiles {
		connector, err := oidc.New(ctx, p, secretStore)
		if err != nil {
			return err
		}
		authenticators = append(authenticators, connector)
	}

	apiKey, err := secretStore.Secret(ctx, cfg.APIKeySecretRef)
	if err != nil {
		return err
	}
	api := apiclient.New(cfg.APIBaseURL, apiKey)

	accessController := access.NewController(access.DefaultPagePermissions(), access.DefaultNav())

	app := webapp.New(
		sessions, accessController, authenticators, permStore, api,
		cfg.AuthorizedEmails, webapp.WithPostLoginHook(cfg.PostLoginHook),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Ctx(ctx).Infof("listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http.Server.ListenAndServe()")
	case <-ctx.Done():
	}

	logger.Ctx(ctx).Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http.Server.Shutdown()")
	}

	return nil
}

func newSecureCookie(cfg *config.Config) (*securecookie.SecureCookie, error) {
	hashKey, err := base64.StdEncoding.DecodeString(cfg.CookieHashKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid COOKIE_HASH_KEY")
	}
	blockKey, err := base64.StdEncoding.DecodeString(cfg.CookieBlockKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid COOKIE_BLOCK_KEY")
	}
	if len(hashKey) == 0 || len(blockKey) == 0 {
		return nil, errors.New("COOKIE_HASH_KEY and COOKIE_BLOCK_KEY are required")
	}

	return securecookie.New(hashKey, blockKey), nil
}

func newSessionStore(cfg *config.Config) (sessionstorage.Store, func(), error) {
	switch cfg.SessionStore {
	case "memory":
		store := sessionstorage.NewMemoryStore()

		return store, store.Stop, nil
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})

		return sessionstorage.NewRedisStore(client, cfg.SessionKeyPrefix), func() { _ = client.Close() }, nil
	}
}

func newPermissionStore(ctx context.Context, cfg *config.Config) (permission.Store, func(), error) {
	switch cfg.PermissionStore {
	case "spanner":
		client, err := spanner.NewClient(ctx, cfg.SpannerDatabase)
		if err != nil {
			return nil, nil, errors.Wrap(err, "spanner.NewClient()")
		}

		return permission.NewSpannerStore(client), client.Close, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "pgxpool.New()")
		}

		return permission.NewPostgresStore(pool), pool.Close, nil
	}
}
