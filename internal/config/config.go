package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the api server and jobctl read from the environment.
type Config struct {
	Port string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	BundleRoot string
	CVDir      string

	GeminiAPIKey string
	GeminiModel  string

	GreenhouseAPIRoot string
	LeverAPIRoot      string
	UserAgent         string
	SubmitSpacing     time.Duration
	SubmitTimeout     time.Duration
	PreviewTimeout    time.Duration

	CandidateName string

	GmailWatcher     bool
	GmailCredentials string
	GmailToken       string
	GmailInterval    time.Duration
}

// Load reads the .env file if present and then the process environment.
func Load() (Config, error) {
	// .env is optional; real deployments set the variables directly
	_ = godotenv.Load()

	spacing, err := getEnvDuration("SUBMIT_SPACING", 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse SUBMIT_SPACING: %w", err)
	}
	submitTimeout, err := getEnvDuration("SUBMIT_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse SUBMIT_TIMEOUT: %w", err)
	}
	previewTimeout, err := getEnvDuration("PREVIEW_TIMEOUT", 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse PREVIEW_TIMEOUT: %w", err)
	}
	gmailInterval, err := getEnvDuration("GMAIL_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse GMAIL_INTERVAL: %w", err)
	}
	gmailWatcher, err := getEnvBool("GMAIL_WATCHER", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse GMAIL_WATCHER: %w", err)
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", "data/jobs.db"),
		BundleRoot:        getEnv("BUNDLE_ROOT", "outputs"),
		CVDir:             getEnv("CV_DIR", "data/cv"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GreenhouseAPIRoot: getEnv("GREENHOUSE_API_ROOT", "https://boards-api.greenhouse.io/v1"),
		LeverAPIRoot:      getEnv("LEVER_API_ROOT", "https://api.lever.co/v0"),
		UserAgent:         getEnv("SUBMIT_USER_AGENT", "Job-O-Matic/1.0 (Responsible Automation)"),
		SubmitSpacing:     spacing,
		SubmitTimeout:     submitTimeout,
		PreviewTimeout:    previewTimeout,
		CandidateName:     getEnv("CANDIDATE_NAME", ""),
		GmailWatcher:      gmailWatcher,
		GmailCredentials:  getEnv("GMAIL_CREDENTIALS", "credential.json"),
		GmailToken:        getEnv("GMAIL_TOKEN", "token.json"),
		GmailInterval:     gmailInterval,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (want postgres or sqlite)", c.DBDriver)
	}
	if c.SubmitSpacing < 0 {
		return fmt.Errorf("SUBMIT_SPACING must not be negative")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT must be positive")
	}
	if c.PreviewTimeout <= 0 {
		return fmt.Errorf("PREVIEW_TIMEOUT must be positive")
	}
	if c.GmailWatcher && c.GmailInterval <= 0 {
		return fmt.Errorf("GMAIL_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}
