package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the reference API server's configuration.
type Config struct {
	Addr         string
	DBPath       string
	TokenTTL     time.Duration
	ChallengeTTL time.Duration
	RateLimits   RateLimits
	LogLevel     string
	LogFormat    string
}

type RateLimits struct {
	QuestionPerMinute int
	AnswerPerMinute   int
	VotePerMinute     int
	LoginPerMinute    int
}

func Load() Config {
	addr := envString("INFOBASE_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	return Config{
		Addr:         addr,
		DBPath:       envString("INFOBASE_DB", "infobase.db"),
		TokenTTL:     envDuration("INFOBASE_TOKEN_TTL", 24*time.Hour),
		ChallengeTTL: envDuration("INFOBASE_CHALLENGE_TTL", 5*time.Minute),
		RateLimits: RateLimits{
			QuestionPerMinute: envInt("INFOBASE_RL_QUESTION_PER_MIN", 10),
			AnswerPerMinute:   envInt("INFOBASE_RL_ANSWER_PER_MIN", 30),
			VotePerMinute:     envInt("INFOBASE_RL_VOTE_PER_MIN", 120),
			LoginPerMinute:    envInt("INFOBASE_RL_LOGIN_PER_MIN", 20),
		},
		LogLevel:  envString("INFOBASE_LOG_LEVEL", "info"),
		LogFormat: envString("INFOBASE_LOG_FORMAT", "text"),
	}
}

// Client is the CLI client's configuration: a YAML profile overridden by
// INFOBASE_* environment variables.
type Client struct {
	APIURL    string        `yaml:"api_url"`
	StatePath string        `yaml:"state"`
	Timeout   time.Duration `yaml:"timeout"`
	RPS       float64       `yaml:"rps"`
	Burst     int           `yaml:"burst"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
}

// DefaultClientPath is ~/.infobase/config.yaml, or "" if there is no home directory.
func DefaultClientPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".infobase", "config.yaml")
}

func defaultClient() Client {
	state := "infobase-state.db"
	if home, err := os.UserHomeDir(); err == nil {
		state = filepath.Join(home, ".infobase", "state.db")
	}
	return Client{
		APIURL:    "http://localhost:8080",
		StatePath: state,
		Timeout:   30 * time.Second,
		RPS:       10,
		Burst:     5,
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

// LoadClient reads the profile at path if it exists and applies environment
// overrides. A missing profile is not an error.
func LoadClient(path string) (Client, error) {
	cfg := defaultClient()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Client{}, fmt.Errorf("read client config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Client{}, fmt.Errorf("parse client config %s: %w", path, err)
			}
		}
	}

	cfg.APIURL = envString("INFOBASE_API_URL", cfg.APIURL)
	cfg.StatePath = envString("INFOBASE_STATE", cfg.StatePath)
	cfg.Timeout = envDuration("INFOBASE_TIMEOUT", cfg.Timeout)
	cfg.RPS = envFloat("INFOBASE_RPS", cfg.RPS)
	cfg.LogLevel = envString("INFOBASE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("INFOBASE_LOG_FORMAT", cfg.LogFormat)
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
