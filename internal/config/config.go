package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds every gateway setting, loaded once at startup from the
// environment (with .env as a convenience overlay) plus an optional static
// model map file.
type Config struct {
	Port    string
	GinMode string

	// Inbound auth: the shared secret clients present to this gateway.
	ProxyAPIKey string

	// Upstream credentials (see internal/auth for the refresh protocol).
	RefreshToken      string
	ProfileARN        string
	Region            string
	IdentityProvider  string
	CredentialsFile   string

	// Upstream endpoints, region-templated.
	AuthEndpoint     string
	APIEndpoint      string
	MetadataEndpoint string

	// Token refresh
	TokenRefreshThresholdSeconds int

	// HTTP retry
	MaxRetries      int
	BaseRetryDelay  time.Duration

	// Model cache
	ModelCacheTTL        time.Duration
	DefaultMaxInputTokens int

	// Tool description relocation
	ToolDescriptionMaxLength int

	// Logging
	LogLevel  string
	LogFormat string

	// Streaming first-byte timeout/retry
	FirstByteTimeout    time.Duration
	FirstByteMaxRetries int

	// Debug
	DebugMode string // off, errors, all
	DebugDir  string

	// Local rate limiting (requests/minute, 0 disables)
	RateLimitPerMinute int

	// Token counting
	ApplyClaudeCorrection bool

	// Server
	ServerShutdownTimeout time.Duration

	// CORS
	CORSAllowedOrigins string

	// Static model name map (client-facing name -> upstream model id),
	// loaded from the file named by MODEL_MAP_FILE (default model_map.yaml)
	// if present.
	ModelMap map[string]string `yaml:"model_map"`
}

var AppConfig *Config

// Load reads environment variables (after loading .env if present) into a
// new Config, optionally overlaying a YAML model map file.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		ProxyAPIKey: getEnvOrDefault("PROXY_API_KEY", "changeme_proxy_secret"),

		RefreshToken:     getEnvOrDefault("REFRESH_TOKEN", ""),
		ProfileARN:       getEnvOrDefault("PROFILE_ARN", ""),
		Region:           getEnvOrDefault("KIRO_REGION", "us-east-1"),
		IdentityProvider: getEnvOrDefault("IDENTITY_PROVIDER", "BuilderId"),
		CredentialsFile:  getEnvOrDefault("KIRO_CREDS_FILE", ""),

		AuthEndpoint:     getEnvOrDefault("AUTH_ENDPOINT", "https://prod.us-east-1.auth.desktop.kiro.dev/refreshToken"),
		APIEndpoint:      getEnvOrDefault("API_ENDPOINT", "https://codewhisperer.us-east-1.amazonaws.com"),
		MetadataEndpoint: getEnvOrDefault("METADATA_ENDPOINT", "https://codewhisperer.us-east-1.amazonaws.com"),

		TokenRefreshThresholdSeconds: getEnvAsInt("TOKEN_REFRESH_THRESHOLD", 600),

		MaxRetries:     getEnvAsInt("MAX_RETRIES", 3),
		BaseRetryDelay: getEnvAsDuration("BASE_RETRY_DELAY", time.Second),

		ModelCacheTTL:         getEnvAsDuration("MODEL_CACHE_TTL", time.Hour),
		DefaultMaxInputTokens: getEnvAsInt("DEFAULT_MAX_INPUT_TOKENS", 200000),

		ToolDescriptionMaxLength: getEnvAsInt("TOOL_DESCRIPTION_MAX_LENGTH", 10000),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		FirstByteTimeout:    getEnvAsDuration("FIRST_TOKEN_TIMEOUT", 15*time.Second),
		FirstByteMaxRetries: getEnvAsInt("FIRST_TOKEN_MAX_RETRIES", 3),

		DebugMode: getEnvOrDefault("DEBUG_MODE", "off"),
		DebugDir:  getEnvOrDefault("DEBUG_DIR", "debug_logs"),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 0),

		ApplyClaudeCorrection: getEnvOrDefault("APPLY_CLAUDE_CORRECTION", "false") == "true",

		ServerShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),

		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),
	}

	modelMapPath := getEnvOrDefault("MODEL_MAP_FILE", "model_map.yaml")
	if f, err := os.Open(modelMapPath); err == nil {
		defer f.Close()
		if err := loadModelMap(f, cfg); err != nil {
			log.Printf("Warning: failed to parse %s: %v", modelMapPath, err)
		}
	}

	if cfg.RefreshToken == "" {
		log.Println("Warning: REFRESH_TOKEN is not set; upstream auth will fail until a credentials file with a refresh token is provided")
	}
	if cfg.ProfileARN == "" {
		log.Println("Warning: PROFILE_ARN is not set")
	}
	if cfg.ProxyAPIKey == "changeme_proxy_secret" {
		log.Println("Warning: PROXY_API_KEY is using its insecure default value")
	}

	AppConfig = cfg
	return cfg
}

func loadModelMap(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	wrapper := struct {
		ModelMap map[string]string `yaml:"model_map"`
	}{}
	if err := decoder.Decode(&wrapper); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if wrapper.ModelMap != nil {
		cfg.ModelMap = wrapper.ModelMap
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Warning: failed to parse environment variable %s=%q as duration, using default %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Warning: failed to parse environment variable %s=%q as int, using default %d", key, value, defaultValue)
	}
	return defaultValue
}
