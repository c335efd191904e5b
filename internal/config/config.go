// Package config loads application configuration from the environment.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the server needs to start.
type Config struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID" required:"true"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET" required:"true"`
	SpotifyRedirectURL  string `envconfig:"SPOTIFY_REDIRECT_URL" required:"true"`

	GoogleAIKey string `envconfig:"GOOGLE_AI_API_KEY" required:"true"`
	GeminiModel string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-lite"`

	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://localhost:3000"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment, seeded from a .env file
// when one exists. A missing .env file is not an error; missing required
// variables are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
