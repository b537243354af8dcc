package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const validationTimeout = 10 * time.Second

var (
	telegramAPIURL = "https://api.telegram.org"
	geminiAPIURL   = "https://generativelanguage.googleapis.com"
)

// IsInteractiveTerminal returns true if both stdin and stdout are TTYs.
// This is used to determine if we can run the interactive setup wizard.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard runs an interactive wizard to collect required configuration.
// Returns true if setup was successful and the bot should continue starting.
func RunSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("🛍️ SellSmart Bot - First-time Setup"))
	fmt.Println()

	var botToken, geminiKey, adminID string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Message @BotFather on Telegram → /newbot → copy token").
				Value(&botToken).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("token is required")
					}
					return ValidateTelegramToken(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key").
				Description("Get yours at https://aistudio.google.com/apikey").
				Value(&geminiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return ValidateGeminiKey(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Your Telegram User ID").
				Description("Message @userinfobot to get your ID: https://t.me/userinfobot").
				Value(&adminID).
				Validate(validateAdminID),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		"BOT_TOKEN":         botToken,
		"GEMINI_API_KEY":    geminiKey,
		"ADMIN_TELEGRAM_ID": adminID,
	}

	configPath, err := ConfigFilePath()
	if err == nil {
		err = WriteEnvFile(configPath, values)
	}
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}

	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting bot...")
	fmt.Println()

	return true
}

func validateAdminID(s string) error {
	if s == "" {
		return errors.New("user ID is required")
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return errors.New("must be a number")
	}
	return nil
}

// ValidateTelegramToken validates a Telegram bot token by calling the getMe API.
func ValidateTelegramToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), validationTimeout)
	defer cancel()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}

	resp, err := resty.New().R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("%s/bot%s/getMe", telegramAPIURL, token))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}

	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return fmt.Errorf("token rejected by Telegram (HTTP %d)", resp.StatusCode())
	}

	return nil
}

// ValidateGeminiKey validates a Gemini API key by listing models, which is
// lightweight and requires a valid key.
func ValidateGeminiKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), validationTimeout)
	defer cancel()

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	resp, err := resty.New().R().
		SetContext(ctx).
		SetQueryParam("key", key).
		SetError(&apiErr).
		Get(geminiAPIURL + "/v1beta/models")
	if err != nil {
		return errors.New("connection failed - check your internet")
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		if apiErr.Error.Message != "" {
			return errors.New(apiErr.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", resp.StatusCode())
	}
	return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode())
}

// envOrder keeps config.env stable across rewrites.
var envOrder = []string{"BOT_TOKEN", "GEMINI_API_KEY", "ADMIN_TELEGRAM_ID", "SELLSMART_DB_PATH", "HTTP_ADDR", "GENERATION_MODE"}

// WriteEnvFile writes the configuration to path.
// Uses restrictive permissions (0600) since the file contains secrets.
func WriteEnvFile(path string, values map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// Quote values to handle special characters
	for _, key := range envOrder {
		if val, ok := values[key]; ok {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}

	return nil
}

// WaitOnWindows pauses execution on Windows so users can see error messages
// before the console window closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// FatalWithWait logs a fatal error and waits on Windows before exiting.
func FatalWithWait(format string, args ...any) {
	log.Error().Msgf(format, args...)
	WaitOnWindows()
	os.Exit(1)
}
