package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	MetricsAddr string
	Environment string

	// AdminTokenHash is the bcrypt hash of the token guarding settings writes.
	// Empty disables the settings write endpoint.
	AdminTokenHash string

	JWT         JWTConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Recognition RecognitionConfig
	Capture     CaptureConfig

	// SettingsFile optionally points at a YAML file with the document catalog,
	// platform settings and decision thresholds.
	SettingsFile string
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// RedisConfig is optional; an empty URL keeps quotas in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig is optional; an empty URL keeps review records in memory.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig is optional; no brokers means audit goes to logs and the store only.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type RecognitionConfig struct {
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration

	QuotaWindow     time.Duration
	QuotaPerSession int
	QuotaGlobal     int

	BreakerFailures      int
	BreakerProbeInterval time.Duration
}

type CaptureConfig struct {
	Cooldown    time.Duration
	SessionTTL  time.Duration
	AutoAdvance bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:           getEnv("VERICORE_ADDR", ":8080"),
		MetricsAddr:    getEnv("VERICORE_METRICS_ADDR", ":9090"),
		Environment:    getEnv("VERICORE_ENV", "development"),
		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
		JWT: JWTConfig{
			// development default, override in every deployed environment
			SigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", "vericore"),
			Audience:   getEnv("JWT_AUDIENCE", "vericore-dashboard"),
			TTL:        getEnvAsDuration("JWT_TTL", 8*time.Hour),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvAsList("KAFKA_BROKERS"),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "vericore.audit"),
		},
		Recognition: RecognitionConfig{
			Model:                getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
			BaseURL:              getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:               getEnv("GEMINI_API_KEY", ""),
			Timeout:              getEnvAsDuration("RECOGNITION_TIMEOUT", 30*time.Second),
			QuotaWindow:          getEnvAsDuration("RECOGNITION_QUOTA_WINDOW", time.Minute),
			QuotaPerSession:      getEnvAsInt("RECOGNITION_QUOTA_PER_SESSION", 10),
			QuotaGlobal:          getEnvAsInt("RECOGNITION_QUOTA_GLOBAL", 0),
			BreakerFailures:      getEnvAsInt("RECOGNITION_BREAKER_FAILURES", 5),
			BreakerProbeInterval: getEnvAsDuration("RECOGNITION_BREAKER_PROBE_INTERVAL", 10*time.Second),
		},
		Capture: CaptureConfig{
			Cooldown:    getEnvAsDuration("CAPTURE_COOLDOWN", 60*time.Second),
			SessionTTL:  getEnvAsDuration("CAPTURE_SESSION_TTL", 30*time.Minute),
			AutoAdvance: getEnvAsBool("CAPTURE_AUTO_ADVANCE", true),
		},
		SettingsFile: getEnv("VERICORE_SETTINGS_FILE", ""),
	}
}

func (s Server) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
