package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	AppEnv      string
	LogLevel    string
	DatabaseURL string
	SslCertPath string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	AIAPIKey           string
	AIFallbackAPIKey   string
	GenModel           string
	CandidateModels    []string
	ModelCheckInterval time.Duration

	ChunkSize         int
	MaxRetries        int
	BaseBackoff       time.Duration
	InterChunkDelay   time.Duration
	CallTimeout       time.Duration
	ChunkConcurrency  int
	MinQuestionLength int
	Workers           int

	JWTSecret      string
	SendGridAPIKey string
	MailFrom       string
	AllowedOrigins []string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "examina-docs"),

		AIAPIKey:           getEnv("GEMINI_API_KEY", ""),
		AIFallbackAPIKey:   getEnv("GEMINI_API_KEY_FALLBACK", ""),
		GenModel:           getEnv("GEN_MODEL", "gemini-1.5-flash"),
		CandidateModels:    getEnvList("GEN_MODEL_CANDIDATES", []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-1.0-pro"}),
		ModelCheckInterval: getEnvDuration("MODEL_CHECK_INTERVAL", 24*time.Hour),

		ChunkSize:         getEnvInt("CHUNK_SIZE", 8000),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		BaseBackoff:       getEnvDuration("BASE_BACKOFF", 5*time.Second),
		InterChunkDelay:   getEnvDuration("INTER_CHUNK_DELAY", 10*time.Second),
		CallTimeout:       getEnvDuration("CALL_TIMEOUT", 90*time.Second),
		ChunkConcurrency:  getEnvInt("CHUNK_CONCURRENCY", 1),
		MinQuestionLength: getEnvInt("MIN_QUESTION_LENGTH", 3),
		Workers:           getEnvInt("WORKERS", 2),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		MailFrom:       getEnv("MAIL_FROM", "no-reply@examina.app"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

// Validate reports settings the server cannot start without.
// Missing AI credentials are allowed; the AI endpoints report themselves as unconfigured.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, errors.New("MAX_RETRIES must be positive"))
	}
	if c.ChunkConcurrency <= 0 {
		errs = append(errs, errors.New("CHUNK_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// AIConfigured reports whether at least one completion credential is present.
func (c *Config) AIConfigured() bool {
	return c.AIAPIKey != "" || c.AIFallbackAPIKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
