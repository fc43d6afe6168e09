package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/habedi/reauth/auth"
	"github.com/habedi/reauth/cache"
	"github.com/habedi/reauth/client"
	"github.com/habedi/reauth/config"
	"github.com/habedi/reauth/db"
	"github.com/habedi/reauth/pkg/clierr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

// app bundles what a command needs once configuration is resolved.
type app struct {
	cfg *config.Config
	svc *auth.Service
}

// setupApp loads the configuration named by the --config flag and builds the
// auth service over the configured slots. The returned cleanup closes the
// database when one was opened.
func setupApp(cmd *cobra.Command) (*app, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, clierr.New(clierr.Validation, "Failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, clierr.New(clierr.Validation, fmt.Sprintf("Invalid configuration: %v", err), err)
	}
	applyLogLevel(cfg.LogLevel)

	cleanup := func() {}
	var repo db.SlotRepository
	if cfg.UsesSQLite() {
		db.Path = cfg.DBPath
		if err := db.InitDB(); err != nil {
			return nil, nil, clierr.New(clierr.Internal, "Failed to initialize database", err)
		}
		cleanup = closeDatabase
		repo = db.NewSlotRepository(db.GetDB())
	}

	svc, err := newService(cmd.Context(), cfg, repo)
	if err != nil {
		cleanup()
		return nil, nil, clierr.New(clierr.Internal, "Failed to open token storage", err)
	}
	return &app{cfg: cfg, svc: svc}, cleanup, nil
}

func newService(ctx context.Context, cfg *config.Config, repo db.SlotRepository) (*auth.Service, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	access, err := cache.Open(cfg.AccessStore, auth.AccessSlot, cfg.StateDir, repo)
	if err != nil {
		return nil, err
	}
	var refresh cache.Cache
	if cfg.RefreshEnabled() {
		if refresh, err = cache.Open(cfg.RefreshStore, auth.RefreshSlot, cfg.StateDir, repo); err != nil {
			return nil, err
		}
	}

	return auth.NewService(ctx, auth.Config{
		AccessCache:        access,
		RefreshCache:       refresh,
		RefreshTokenExpiry: cfg.RefreshTokenExpiry,
		Exchanger:          newExchanger(cfg.Exchange),
		LogoutHandler: func() {
			log.Info().Msg("Token slots cleared")
		},
	})
}

// newExchanger returns nil when no token URL is configured, which leaves the
// service unable to refresh.
func newExchanger(ex config.Exchange) auth.Exchanger {
	if ex.TokenURL == "" {
		return nil
	}
	if strings.EqualFold(ex.Mode, config.ModeOAuth2) {
		return client.OAuth2Exchanger(&oauth2.Config{
			ClientID:     ex.ClientID,
			ClientSecret: ex.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: ex.TokenURL},
		})
	}
	return &client.TokenEndpoint{
		TokenURL:     ex.TokenURL,
		ClientID:     ex.ClientID,
		ClientSecret: ex.ClientSecret,
		MaxRetries:   ex.MaxRetries,
	}
}

// applyLogLevel honours log_level unless REAUTH_DEBUG already chose a level.
func applyLogLevel(level string) {
	if os.Getenv("REAUTH_DEBUG") != "" || level == "" {
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

func closeDatabase() {
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
	}
	db.Db = nil
}

// mask shows just enough of a token to tell tokens apart.
func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 4) + token[len(token)-4:]
}

// userMessage renders err for the terminal, preferring the CLI message.
func userMessage(err error) string {
	var ce *clierr.Error
	if errors.As(err, &ce) && ce.Message != "" {
		if ce.Err != nil && ce.Type != clierr.SignIn {
			return fmt.Sprintf("%s: %v", ce.Message, ce.Err)
		}
		return ce.Message
	}
	return err.Error()
}
