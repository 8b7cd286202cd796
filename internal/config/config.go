// Package config loads client configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the client binary needs to start.
type Config struct {
	ServerURL     string        `env:"ARENA_SERVER_URL" envDefault:"ws://localhost:8765"`
	DebugAddr     string        `env:"ARENA_DEBUG_ADDR" envDefault:"127.0.0.1:6060"`
	LogLevel      string        `env:"ARENA_LOG_LEVEL" envDefault:"info"`
	PlaybackSpeed float64       `env:"ARENA_PLAYBACK_SPEED" envDefault:"1.0"`
	DialTimeout   time.Duration `env:"ARENA_DIAL_TIMEOUT" envDefault:"10s"`
	SendTimeout   time.Duration `env:"ARENA_SEND_TIMEOUT" envDefault:"3s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
