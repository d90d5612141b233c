// Package config loads environment configuration, with .env support for
// local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Addr string

	DBUrl  string
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string

	SessionSecret string
	MediaDir      string

	// SendBuffer is the per-connection outbound queue depth. A connection
	// that falls this many frames behind is dropped.
	SendBuffer int

	// SingleSession enforces one connection per identity; a new login
	// evicts the previous one.
	SingleSession bool

	// HandshakeTimeout bounds how long a client may take to complete the
	// HTTP handshake before the connection is dropped unregistered.
	HandshakeTimeout time.Duration

	TracingEnabled bool
	ZipkinURL      string
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:             envOr("COURIER_ADDR", ":8080"),
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		MediaDir:         envOr("MEDIA_DIR", "data/media"),
		SendBuffer:       envInt("SEND_BUFFER", 256),
		SingleSession:    envBool("SINGLE_SESSION"),
		HandshakeTimeout: envDuration("HANDSHAKE_TIMEOUT", 10*time.Second),
		TracingEnabled:   envBool("TRACING_ENABLED"),
		ZipkinURL:        envOr("ZIPKIN_URL", "http://localhost:9411/api/v2/spans"),
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}
	if cfg.SessionSecret == "" {
		log.Fatal("Required environment variable SESSION_SECRET is not set.")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
