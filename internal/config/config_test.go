package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("ADMIN_TELEGRAM_ID", "42")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SELLSMART_DB_PATH", "")
	t.Setenv("GENERATION_MODE", "")
	t.Setenv("SIMULATED_GENERATION_DELAY", "")
	t.Setenv("HTTP_ADDR", "")
	os.Unsetenv("HTTP_ADDR")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.AdminID)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, GenerationSimulated, cfg.GenerationMode)
	assert.Less(t, cfg.SimulatedDelay, time.Duration(0))
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SELLSMART_DB_PATH", "/tmp/x.db")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("GENERATION_MODE", "Gemini")
	t.Setenv("SIMULATED_GENERATION_DELAY", "500ms")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, GenerationGemini, cfg.GenerationMode)
	assert.Equal(t, 500*time.Millisecond, cfg.SimulatedDelay)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing token", "BOT_TOKEN", ""},
		{"bad admin id", "ADMIN_TELEGRAM_ID", "me"},
		{"bad mode", "GENERATION_MODE", "dall-e"},
		{"bad delay", "SIMULATED_GENERATION_DELAY", "soon"},
		{"negative delay", "SIMULATED_GENERATION_DELAY", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("GENERATION_MODE", "")
			t.Setenv("SIMULATED_GENERATION_DELAY", "")
			t.Setenv(tt.key, tt.val)

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestCheckRequiredConfig(t *testing.T) {
	setRequired(t)
	assert.Empty(t, CheckRequiredConfig())

	t.Setenv("ADMIN_TELEGRAM_ID", "")
	assert.Equal(t, []string{"ADMIN_TELEGRAM_ID"}, CheckRequiredConfig())

	t.Setenv("ADMIN_TELEGRAM_ID", "42")
	t.Setenv("GEMINI_API_KEY", "")
	assert.Empty(t, CheckRequiredConfig())
}

func TestFromEnv_GeminiKeyOptional(t *testing.T) {
	setRequired(t)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GENERATION_MODE", "")
	t.Setenv("SIMULATED_GENERATION_DELAY", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestWriteEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), EnvFileName)
	values := map[string]string{
		"BOT_TOKEN":         "123:abc",
		"GEMINI_API_KEY":    "k=ey",
		"ADMIN_TELEGRAM_ID": "42",
	}

	require.NoError(t, WriteEnvFile(path, values))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	read, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, values, read)
}

func TestValidateAdminID(t *testing.T) {
	assert.NoError(t, validateAdminID("123"))
	assert.Error(t, validateAdminID(""))
	assert.Error(t, validateAdminID("abc"))
}

func TestValidateTelegramToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/botgood/getMe" {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	orig := telegramAPIURL
	telegramAPIURL = server.URL
	defer func() { telegramAPIURL = orig }()

	assert.NoError(t, ValidateTelegramToken("good"))
	err := ValidateTelegramToken("bad")
	require.Error(t, err)
	assert.Equal(t, "Unauthorized", err.Error())
}

func TestValidateGeminiKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("key") {
		case "good":
			w.Write([]byte(`{"models":[]}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"API key not valid."}}`))
		}
	}))
	defer server.Close()

	orig := geminiAPIURL
	geminiAPIURL = server.URL
	defer func() { geminiAPIURL = orig }()

	assert.NoError(t, ValidateGeminiKey("good"))

	err := ValidateGeminiKey("bad")
	require.Error(t, err)
	assert.Equal(t, "API key not valid.", err.Error())

	err = ValidateGeminiKey("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}
