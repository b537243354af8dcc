// Package config loads the bot's settings from the environment and from the
// config.env file written by the setup wizard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "sellsmart-bot"
	EnvFileName = "config.env"

	DefaultDBPath   = "sellsmart.db"
	DefaultHTTPAddr = ":8080"
)

// GenerationMode selects the backend used for styled photo generation.
type GenerationMode string

const (
	GenerationSimulated GenerationMode = "simulated"
	GenerationGemini    GenerationMode = "gemini"
)

// requiredEnvVars lists all environment variables that must be set for the bot to run.
// GEMINI_API_KEY is optional: without it the gateway answers every call with
// an auth error, which users see as the API key notice.
var requiredEnvVars = []string{"BOT_TOKEN", "ADMIN_TELEGRAM_ID"}

// Config holds the runtime settings.
type Config struct {
	BotToken       string
	GeminiAPIKey   string
	AdminID        int64
	DBPath         string
	HTTPAddr       string // empty disables the web API
	GenerationMode GenerationMode
	// SimulatedDelay is negative when unset, meaning the generator default.
	SimulatedDelay time.Duration
}

// ConfigDir returns the application's config directory path.
// Creates the directory if it doesn't exist.
func ConfigDir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// ConfigFilePath returns the full path to the config file.
func ConfigFilePath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
// Variables already set in the environment win.
func LoadEnvFile() {
	configPath, err := ConfigFilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// CheckRequiredConfig returns the names of any missing required variables.
func CheckRequiredConfig() []string {
	var missing []string
	for _, v := range requiredEnvVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// FromEnv builds a Config from the process environment.
func FromEnv() (*Config, error) {
	if missing := CheckRequiredConfig(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	adminID, err := strconv.ParseInt(os.Getenv("ADMIN_TELEGRAM_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID must be a valid integer: %w", err)
	}

	cfg := &Config{
		BotToken:       os.Getenv("BOT_TOKEN"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		AdminID:        adminID,
		DBPath:         os.Getenv("SELLSMART_DB_PATH"),
		HTTPAddr:       DefaultHTTPAddr,
		GenerationMode: GenerationSimulated,
		SimulatedDelay: -1,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if addr, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(addr)
	}

	if mode := strings.ToLower(strings.TrimSpace(os.Getenv("GENERATION_MODE"))); mode != "" {
		switch GenerationMode(mode) {
		case GenerationSimulated, GenerationGemini:
			cfg.GenerationMode = GenerationMode(mode)
		default:
			return nil, fmt.Errorf("GENERATION_MODE must be %q or %q, got %q", GenerationSimulated, GenerationGemini, mode)
		}
	}

	if delay := os.Getenv("SIMULATED_GENERATION_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return nil, fmt.Errorf("SIMULATED_GENERATION_DELAY must be a duration: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("SIMULATED_GENERATION_DELAY must not be negative")
		}
		cfg.SimulatedDelay = d
	}

	return cfg, nil
}
