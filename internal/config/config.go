package config

import (
	"os"
	"strings"
)

type Config struct {
	Port            string
	Environment     string
	DatabaseURL     string
	TablePrefix     string
	CORSOrigins     string
	SupabaseURL     string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	// Provider credentials held by the host
	HostGoogleAPIKey  string
	TavilyAPIKey      string
	OpenRouterBaseURL string
	// Infrastructure
	RedisURL      string // Empty selects the in-process job queue and notifier
	BlobDir       string
	PublicBaseURL string
	SigningSecret string
	VaultSecret   string
	// Telemetry
	OTelEndpoint string
	OTelHeaders  string
	ServiceName  string
	// Debug flags
	Debug bool // Enables DEBUG features like SSE event IDs
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	supabaseURL := strings.TrimRight(getEnv("SUPABASE_URL", ""), "/")

	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	port := getEnv("PORT", "8080")

	return &Config{
		Port:              port,
		Environment:       env,
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		TablePrefix:       getTablePrefix(env),
		CORSOrigins:       getEnv("CORS_ORIGINS", "http://localhost:3000"),
		SupabaseURL:       supabaseURL,
		SupabaseJWKSURL:   jwksURL,
		HostGoogleAPIKey:  getEnv("HOST_GOOGLE_API_KEY", ""),
		TavilyAPIKey:      getEnv("TAVILY_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		RedisURL:          getEnv("REDIS_URL", ""),
		BlobDir:           getEnv("BLOB_DIR", "./data/blobs"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		SigningSecret:     getEnv("SIGNING_SECRET", ""),
		VaultSecret:       getEnv("VAULT_SECRET", ""),
		OTelEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelHeaders:       getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
		ServiceName:       getEnv("SERVICE_NAME", "chatstream"),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// IsDev reports whether dev-only surfaces (lorem provider, debug logging) are enabled
func (c *Config) IsDev() bool {
	return c.Environment == "dev" || c.Environment == "test"
}

// TracingEnabled reports whether an OTLP endpoint was configured
func (c *Config) TracingEnabled() bool {
	return c.OTelEndpoint != ""
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
