package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	EnvPathVar        = "SCREEN_TRANSLATOR_ENV"
)

type LoadOptions struct {
	APIKeyPathOverride string
	SourceLangOverride string
	TargetLangOverride string
}

type Config struct {
	APIKey            string
	APIKeyPath        string
	Model             string
	Providers         []string
	SourceLang        string // empty means auto-detect
	TargetLang        string
	OCRLang           string
	HotkeyTranslate   string
	HotkeyWatch       string
	EnableFileLogging bool
	CopyToClipboard   bool
	ReadTimeSec       int
	GapTimeSec        int
	WarmupTimeoutSec  int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Configuration sources in priority order:
	// 1) .env in the executable directory
	// 2) file named by SCREEN_TRANSLATOR_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	var providers []string
	if providersStr := os.Getenv("PROVIDERS"); providersStr != "" {
		for _, provider := range strings.Split(providersStr, ",") {
			if trimmed := strings.TrimSpace(provider); trimmed != "" {
				providers = append(providers, trimmed)
			}
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	sourceLang := strings.TrimSpace(os.Getenv("SOURCE_LANG"))
	if override := strings.TrimSpace(opts.SourceLangOverride); override != "" {
		sourceLang = override
	}
	if strings.EqualFold(sourceLang, "auto") || strings.EqualFold(sourceLang, "detect") {
		sourceLang = ""
	}
	targetLang := getEnvWithDefault("TARGET_LANG", "en")
	if override := strings.TrimSpace(opts.TargetLangOverride); override != "" {
		targetLang = override
	}

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Model:             os.Getenv("MODEL"),
		Providers:         providers,
		SourceLang:        sourceLang,
		TargetLang:        targetLang,
		OCRLang:           getEnvWithDefault("OCR_LANG", "eng"),
		HotkeyTranslate:   getEnvWithDefault("HOTKEY_TRANSLATE", "Ctrl+Alt+T"),
		HotkeyWatch:       getEnvWithDefault("HOTKEY_WATCH", "Ctrl+Alt+W"),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		CopyToClipboard:   strings.ToLower(os.Getenv("COPY_TO_CLIPBOARD")) == "true",
		ReadTimeSec:       positiveIntEnv("READ_TIME_SEC", 3),
		GapTimeSec:        positiveIntEnv("GAP_TIME_SEC", 1),
		WarmupTimeoutSec:  positiveIntEnv("WARMUP_TIMEOUT_SEC", 10),
	}

	return cfg, nil
}

func positiveIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
