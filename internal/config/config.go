package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	PublicBaseURL      string // Prefixed onto /avatars/... paths sent to the vendor
	PublicDir          string // Local directory served as the site root for uploads
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	LogLevel           string
	LogPretty          bool

	// D-ID (avatar video vendor). Empty key is allowed: vendor handlers answer
	// 500 "not configured" and the page falls back to local speech.
	DIDAPIKey       string
	DIDBaseURL      string
	VendorRateLimit float64 // Requests per second to the vendor (0 = unlimited)

	// Storage for uploaded avatar images
	StorageBackend        string // local, supabase or gcs
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string
	GCSBucket             string
	StorageFolder         string

	// Redis (optional job ledger; in-memory when empty)
	RedisURL  string
	LedgerTTL time.Duration

	// Polling (client side)
	PollInterval    time.Duration
	PollMaxAttempts int           // 0 = unbounded
	PollTimeout     time.Duration // 0 = unbounded

	// Avatars
	AvatarsFile    string // TOML roster; empty = built-in roster
	SelectedAvatar string

	// OpenAI (optional speech for the fallback path)
	OpenAIKey   string
	OpenAIVoice string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	port := getEnv("API_PORT", "8080")

	cfg := &Config{
		APIPort:               port,
		PublicBaseURL:         getEnv("PUBLIC_BASE_URL", defaultPublicBaseURL(port)),
		PublicDir:             getEnv("PUBLIC_DIR", "public"),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogPretty:             getEnvBool("LOG_PRETTY", false),
		DIDAPIKey:             getEnv("DID_API_KEY", ""),
		DIDBaseURL:            getEnv("DID_BASE_URL", "https://api.d-id.com"),
		VendorRateLimit:       getEnvFloat("VENDOR_RATE_LIMIT", 0),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "auction-avatars"),
		GCSBucket:             getEnv("GCS_BUCKET", ""),
		StorageFolder:         getEnv("STORAGE_FOLDER", "avatars"),
		RedisURL:              getEnv("REDIS_URL", ""),
		LedgerTTL:             getEnvDuration("LEDGER_TTL", time.Hour),
		PollInterval:          getEnvDuration("POLL_INTERVAL", 2*time.Second),
		PollMaxAttempts:       getEnvInt("POLL_MAX_ATTEMPTS", 0),
		PollTimeout:           getEnvDuration("POLL_TIMEOUT", 0),
		AvatarsFile:           getEnv("AVATARS_FILE", ""),
		SelectedAvatar:        getEnv("SELECTED_AVATAR", DefaultSelectedAvatar),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIVoice:           getEnv("OPENAI_TTS_VOICE", "onyx"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail on first use.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "local":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for STORAGE_BACKEND=supabase")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for STORAGE_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want local, supabase or gcs)", c.StorageBackend)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.PollMaxAttempts < 0 || c.PollTimeout < 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS and POLL_TIMEOUT must not be negative")
	}
	if c.VendorRateLimit < 0 {
		return fmt.Errorf("VENDOR_RATE_LIMIT must not be negative")
	}

	return nil
}

// defaultPublicBaseURL mirrors local dev; production must set PUBLIC_BASE_URL
// (or VERCEL_URL on that platform).
func defaultPublicBaseURL(port string) string {
	if host := os.Getenv("VERCEL_URL"); host != "" {
		return "https://" + host
	}
	return "http://localhost:" + port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("2s") or bare seconds ("2").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
