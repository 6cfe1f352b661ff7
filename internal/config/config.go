// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, persistence and object storage, the generative backend, rate
// limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxUploadLimit is the hard ceiling for a single uploaded document (10 MiB).
const MaxUploadLimit int64 = 10 * 1024 * 1024

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "study-assistant")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig configures the generative backend client.
type LLMConfig struct {
	APIKey       string        // GEMINI_API_KEY
	BaseURL      string        // GEMINI_API_URL
	Model        string        // GEMINI_MODEL
	Timeout      time.Duration // per attempt
	MaxRetries   int           // transient failures only
	RetryBackoff time.Duration // first backoff, doubled per retry
}

// MinioConfig holds the settings for STORAGE_DRIVER=minio.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Config holds the settings for STORAGE_DRIVER=s3.
type S3Config struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string // optional, for S3-compatible services
	PathStyle bool
	SSE       string // "", "AES256" or "aws:kms"
	KMSKeyID  string
}

// StorageConfig selects and configures the object store for raw uploads and
// their extracted-text sidecars.
type StorageConfig struct {
	Driver    string // local|minio|s3
	UploadDir string // local driver root
	Minio     MinioConfig
	S3        S3Config
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s, chat turns wait on the backend
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Persistence
	DBPath      string // SQLite path (idempotency records, sqlite stores)
	StoreDriver string // memory|sqlite for the document and question registries

	// Documents
	Storage           StorageConfig
	MaxUploadBytes    int64 // <= MaxUploadLimit
	VerifyContentType bool  // sniff magic bytes against the declared type
	CleanupOrphans    bool  // delete raw objects whose extraction failed

	// Chat
	LLM             LLMConfig
	MaxMessageRunes int

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 30*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// Persistence
		DBPath:      getenv("DB_PATH", "app.db"),
		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", "memory")),

		// Documents
		Storage: StorageConfig{
			Driver:    strings.ToLower(getenv("STORAGE_DRIVER", "local")),
			UploadDir: getenv("UPLOAD_DIR", "uploads"),
			Minio: MinioConfig{
				Endpoint:  getenv("MINIO_ENDPOINT", ""),
				AccessKey: getenv("MINIO_ACCESS_KEY", ""),
				SecretKey: getenv("MINIO_SECRET_KEY", ""),
				Bucket:    getenv("MINIO_BUCKET", "documents"),
				UseSSL:    getbool("MINIO_USE_SSL", false),
			},
			S3: S3Config{
				Bucket:    getenv("S3_BUCKET", ""),
				Region:    getenv("S3_REGION", "us-east-1"),
				Prefix:    getenv("S3_PREFIX", ""),
				Endpoint:  getenv("S3_ENDPOINT", ""),
				PathStyle: getbool("S3_FORCE_PATH_STYLE", false),
				SSE:       getenv("S3_SSE", ""),
				KMSKeyID:  getenv("S3_KMS_KEY_ID", ""),
			},
		},
		MaxUploadBytes:    getint64("MAX_UPLOAD_BYTES", MaxUploadLimit),
		VerifyContentType: getbool("VERIFY_CONTENT_TYPE", false),
		CleanupOrphans:    getbool("CLEANUP_ORPHANS", true),

		// Chat
		LLM: LLMConfig{
			APIKey:       getenv("GEMINI_API_KEY", ""),
			BaseURL:      strings.TrimRight(getenv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta"), "/"),
			Model:        getenv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:      getdur("LLM_TIMEOUT", 30*time.Second),
			MaxRetries:   getint("LLM_MAX_RETRIES", 2),
			RetryBackoff: getdur("LLM_RETRY_BACKOFF", 300*time.Millisecond),
		},
		MaxMessageRunes: getint("MAX_MESSAGE_RUNES", 4000),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "study-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.StoreDriver {
	case "memory", "sqlite":
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: memory, sqlite")
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return cfg, err
	}
	if cfg.MaxUploadBytes <= 0 || cfg.MaxUploadBytes > MaxUploadLimit {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be in (0, 10MiB]")
	}
	if cfg.LLM.BaseURL == "" || cfg.LLM.Model == "" {
		return cfg, errors.New("GEMINI_API_URL and GEMINI_MODEL must not be empty")
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be > 0")
	}
	if cfg.LLM.MaxRetries < 0 || cfg.LLM.MaxRetries > 5 {
		return cfg, errors.New("LLM_MAX_RETRIES must be in [0,5]")
	}
	if cfg.LLM.RetryBackoff < 0 {
		return cfg, errors.New("LLM_RETRY_BACKOFF must be >= 0")
	}
	if cfg.MaxMessageRunes < 1 {
		return cfg, errors.New("MAX_MESSAGE_RUNES must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func validateStorage(s StorageConfig) error {
	switch s.Driver {
	case "local":
		if strings.TrimSpace(s.UploadDir) == "" {
			return errors.New("UPLOAD_DIR must not be empty")
		}
	case "minio":
		if s.Minio.Endpoint == "" || s.Minio.Bucket == "" {
			return errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for STORAGE_DRIVER=minio")
		}
	case "s3":
		if s.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required for STORAGE_DRIVER=s3")
		}
		switch s.S3.SSE {
		case "", "AES256", "aws:kms":
		default:
			return errors.New("S3_SSE must be empty, AES256 or aws:kms")
		}
	default:
		return errors.New("STORAGE_DRIVER must be one of: local, minio, s3")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
