package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Twilio   TwilioConfig
	OpenAI   OpenAIConfig
	Agent    AgentConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// ConnectionString builds the postgres connection string for the pgx driver
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s", d.Username, d.Password, d.Host, d.Name)
}

// TwilioConfig holds telephony channel configuration
type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	FromNumber     string
	AnswerURL      string // public URL Twilio fetches TwiML from when a call connects
	MediaStreamURL string // public wss:// URL for the media-stream websocket
}

// OpenAIConfig holds speech recognition and synthesis configuration
type OpenAIConfig struct {
	APIKey             string
	TranscriptionModel string
	Voice              string
}

// AgentConfig holds conversational backend configuration. All fields are
// optional: when BaseURL is empty the gateway runs without a backend and every
// turn is answered with the fallback reply.
type AgentConfig struct {
	BaseURL    string
	TokenURL   string
	ClientID   string
	Audience   string
	PrivateKey string // PEM-encoded RSA key for the JWT bearer assertion
}

// Configured reports whether the backend integration is set up.
func (a AgentConfig) Configured() bool {
	return a.BaseURL != ""
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Twilio configuration
	if cfg.Twilio.AccountSID, err = requireEnv("TWILIO_ACCOUNT_SID"); err != nil {
		return nil, err
	}
	if cfg.Twilio.AuthToken, err = requireEnv("TWILIO_AUTH_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.Twilio.FromNumber, err = requireEnv("TWILIO_FROM_NUMBER"); err != nil {
		return nil, err
	}
	if cfg.Twilio.AnswerURL, err = requireEnv("TWILIO_ANSWER_URL"); err != nil {
		return nil, err
	}
	if cfg.Twilio.MediaStreamURL, err = requireEnv("TWILIO_MEDIA_STREAM_URL"); err != nil {
		return nil, err
	}

	// OpenAI configuration
	if cfg.OpenAI.APIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	cfg.OpenAI.TranscriptionModel = envOrDefault("OPENAI_TRANSCRIPTION_MODEL", "gpt-4o-transcribe")
	cfg.OpenAI.Voice = envOrDefault("OPENAI_TTS_VOICE", "alloy")

	// Agent backend configuration (optional as a group)
	cfg.Agent.BaseURL = os.Getenv("AGENT_BASE_URL")
	if cfg.Agent.Configured() {
		if cfg.Agent.TokenURL, err = requireEnv("AGENT_TOKEN_URL"); err != nil {
			return nil, err
		}
		if cfg.Agent.ClientID, err = requireEnv("AGENT_CLIENT_ID"); err != nil {
			return nil, err
		}
		if cfg.Agent.Audience, err = requireEnv("AGENT_AUDIENCE"); err != nil {
			return nil, err
		}
		if cfg.Agent.PrivateKey, err = requireEnv("AGENT_PRIVATE_KEY"); err != nil {
			return nil, err
		}
	}

	// Server configuration
	portStr := envOrDefault("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value %q: %w", portStr, err)
	}
	cfg.Server.Port = port

	return cfg, nil
}

// requireEnv returns the value of an environment variable or an error if it is empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyEnvironmentVariable, key)
	}
	return value, nil
}

// envOrDefault returns the value of an environment variable or a default
func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
