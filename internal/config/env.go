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

// Vector index backends.
const (
	VectorBackendPgvector = "pgvector"
	VectorBackendQdrant   = "qdrant"
)

// Embedding providers.
const (
	EmbedProviderGemini = "gemini"
	EmbedProviderOpenAI = "openai"
)

type Config struct {
	ProjectID      string
	PublishableKey string

	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	StorageRoot  string
	SslCertPath  string

	AIAPIKey      string
	OpenAIAPIKey  string
	EmbedProvider string
	EmbedModel    string
	EmbedDim      int
	GenModel      string
	MaxToolSteps  int

	VectorBackend string
	QdrantHost    string
	QdrantPort    int

	JWTSecret   string
	TokenTTL    time.Duration
	Port        string
	WebDir      string
	CORSOrigins []string

	IngestWorkers int
	ReadyTimeout  time.Duration
	LogLevel      string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		ProjectID:      getEnv("CODEINSIGHT_PROJECT_ID", "codeinsight"),
		PublishableKey: getEnv("CODEINSIGHT_PUBLISHABLE_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "codeinsight-files"),
		StorageRoot:    getEnv("STORAGE_ROOT", "code-insights"),
		SslCertPath:    getEnv("SSL_CERT_PATH", ""),
		AIAPIKey:       getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbedProvider:  strings.ToLower(getEnv("EMBED_PROVIDER", EmbedProviderGemini)),
		EmbedModel:     getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:       getEnvInt("EMBED_DIM", 768),
		GenModel:       getEnv("GEN_MODEL", "gemini-2.0-flash"),
		MaxToolSteps:   getEnvInt("MAX_TOOL_STEPS", 4),
		VectorBackend:  strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendPgvector)),
		QdrantHost:     getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:     getEnvInt("QDRANT_PORT", 6334),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 24*time.Hour),
		Port:           getEnv("PORT", "8080"),
		WebDir:         getEnv("WEB_DIR", "./web"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8888"}),
		IngestWorkers:  getEnvInt("INGEST_WORKERS", 2),
		ReadyTimeout:   getEnvDuration("READY_TIMEOUT", 0),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every missing or invalid value the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	switch c.EmbedProvider {
	case EmbedProviderGemini:
	case EmbedProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY not set"))
		}
	default:
		errs = append(errs, errors.New("EMBED_PROVIDER must be gemini or openai"))
	}
	switch c.VectorBackend {
	case VectorBackendPgvector, VectorBackendQdrant:
	default:
		errs = append(errs, errors.New("VECTOR_BACKEND must be pgvector or qdrant"))
	}
	if c.IngestWorkers < 1 {
		errs = append(errs, errors.New("INGEST_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
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
	return out
}
