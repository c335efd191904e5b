// Command tracksort runs the track classification API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/acrezel/tracksort/internal/auth"
	"github.com/acrezel/tracksort/internal/classify"
	"github.com/acrezel/tracksort/internal/config"
	"github.com/acrezel/tracksort/internal/db"
	"github.com/acrezel/tracksort/internal/gemini"
	"github.com/acrezel/tracksort/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "tracksort",
	})

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	logger.Info("database connected")

	tokens := auth.NewTokenManager(auth.TokenManagerConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
	}, database.Accounts(), logger)

	spotifyAuth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.SpotifyClientID),
		spotifyauth.WithClientSecret(cfg.SpotifyClientSecret),
		spotifyauth.WithRedirectURL(cfg.SpotifyRedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadEmail,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
		),
	)

	model := classify.NewModelClassifier(gemini.NewClient(gemini.Config{
		APIKey: cfg.GoogleAIKey,
		Model:  cfg.GeminiModel,
	}))
	classifier := classify.NewService(classify.NewRepository(database), model, logger)

	handlers := web.NewHandlers(web.HandlersConfig{
		Users:      database.Users(),
		Accounts:   database.Accounts(),
		Sessions:   web.NewSessions(database.Sessions()),
		Tokens:     tokens,
		Classifier: classifier,
		Auth:       spotifyAuth,
		Logger:     logger,
	})

	server := web.NewServer(web.ServerConfig{
		Addr:          cfg.Addr,
		AllowedOrigin: cfg.AllowedOrigin,
	}, handlers, logger)

	return server.Run()
}
