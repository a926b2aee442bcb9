package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	StaticDir   string
	UploadDir   string
	CorsOrigins []string
	LogLevel    string
	LogFormat   string

	// relational store
	DBDriver    string // postgres | sqlite
	DatabaseURL string
	SqlitePath  string
	SslCertPath string

	// vector store
	VectorBackend string // pgvector | qdrant | bolt
	QdrantHost    string
	QdrantPort    int
	QdrantAPIKey  string
	BoltPath      string
	EmbedDim      int

	// inference
	LLMBackend    string // gemini | openai
	EmbedBackend  string // gemini | openai
	AIAPIKey      string
	GenModel      string
	EmbedModel    string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	EmbedRPS      float64
	EmbedBurst    int

	// archive of uploaded originals
	ArchiveBackend string // none | s3
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string

	// ingestion
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
	UseReadability bool

	// summarization
	SummaryChunkSize int
	SummaryMaxChunks int
	SummaryWorkers   int

	// chat
	RetrievedDocsCount int
	ChatHistoryWindow  int
	IntentClassifier   string // always | llm
	Decoding           DecodingConfig

	Profile string
}

// DecodingConfig holds the chat decoding knobs passed to the inference engine.
type DecodingConfig struct {
	MaxTokens       int
	Temperature     float64
	TopP            float64
	PresencePenalty float64
	RepeatPenalty   float64
	Stop            []string
}

// LoadConfig loads the environment variables and return config.
// Values come from, in increasing priority: built-in defaults, the selected
// profile, then explicit environment variables.
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	profiles, err := LoadProfiles(getEnv("PROFILE_FILE", ""))
	if err != nil {
		return nil, err
	}
	name := getEnv("PROFILE", DefaultProfile)
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", name)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		StaticDir:   getEnv("STATIC_DIR", "./static"),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
		CorsOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:8000", "http://localhost:5173"}),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SqlitePath:  getEnv("SQLITE_PATH", "./chat_history.db"),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		VectorBackend: getEnv("VECTOR_BACKEND", "bolt"),
		QdrantHost:    getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:    getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:  getEnv("QDRANT_API_KEY", ""),
		BoltPath:      getEnv("BOLT_PATH", "./vectors.db"),
		EmbedDim:      getEnvInt("EMBED_DIM", 768),

		LLMBackend:    getEnv("LLM_BACKEND", "gemini"),
		EmbedBackend:  getEnv("EMBED_BACKEND", "gemini"),
		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GenModel:      getEnv("GEN_MODEL", "gemini-1.5-flash"),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		EmbedRPS:      getEnvFloat("EMBED_RPS", 0),
		EmbedBurst:    getEnvInt("EMBED_BURST", 1),

		ArchiveBackend: getEnv("ARCHIVE_BACKEND", "none"),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "ragdesk-uploads"),

		ChunkSize:      getEnvInt("CHUNK_SIZE", 2000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 400),
		EmbedBatchSize: getEnvInt("EMBED_BATCH_SIZE", 10),
		UseReadability: getEnvBool("USE_READABILITY", false),

		SummaryChunkSize: getEnvInt("SUMMARY_CHUNK_SIZE", p.SummaryChunkSize),
		SummaryMaxChunks: getEnvInt("SUMMARY_MAX_CHUNKS", p.SummaryMaxChunks),
		SummaryWorkers:   getEnvInt("SUMMARY_WORKERS", p.SummaryWorkers),

		RetrievedDocsCount: getEnvInt("RETRIEVED_DOCS_COUNT", p.RetrievedDocsCount),
		ChatHistoryWindow:  getEnvInt("CHAT_HISTORY_WINDOW", p.ChatHistoryWindow),
		IntentClassifier:   getEnv("INTENT_CLASSIFIER", "always"),
		Decoding: DecodingConfig{
			MaxTokens:       getEnvInt("CHAT_MAX_TOKENS", p.ChatMaxTokens),
			Temperature:     getEnvFloat("CHAT_TEMPERATURE", 0.7),
			TopP:            getEnvFloat("CHAT_TOP_P", 0.9),
			PresencePenalty: getEnvFloat("CHAT_PRESENCE_PENALTY", 0.3),
			RepeatPenalty:   getEnvFloat("CHAT_REPEAT_PENALTY", 1.1),
			Stop:            getEnvList("CHAT_STOP", []string{"<|im_end|>", "User:", "Human:"}),
		},

		Profile: name,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the startup invariants. Any error here is fatal.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL not set")
		}
	case "sqlite":
		if c.SqlitePath == "" {
			return fmt.Errorf("SQLITE_PATH not set")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.VectorBackend {
	case "pgvector":
		if c.DBDriver != "postgres" {
			return fmt.Errorf("VECTOR_BACKEND=pgvector requires DB_DRIVER=postgres")
		}
	case "qdrant", "bolt":
	default:
		return fmt.Errorf("unsupported VECTOR_BACKEND %q", c.VectorBackend)
	}

	for _, backend := range []string{c.LLMBackend, c.EmbedBackend} {
		switch backend {
		case "gemini":
			if c.AIAPIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY not set")
			}
		case "openai":
			if c.OpenAIBaseURL == "" {
				return fmt.Errorf("OPENAI_BASE_URL not set")
			}
		default:
			return fmt.Errorf("unsupported inference backend %q", backend)
		}
	}
	if c.GenModel == "" || c.EmbedModel == "" {
		return fmt.Errorf("GEN_MODEL and EMBED_MODEL must be set")
	}

	if c.ArchiveBackend == "s3" && (c.AwsAccessKey == "" || c.AwsSecretKey == "") {
		return fmt.Errorf("ARCHIVE_BACKEND=s3 requires AWS_ACCESS_KEY and AWS_SECRET_KEY")
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: CHUNK_SIZE=%d CHUNK_OVERLAP=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.SummaryChunkSize <= 0 || c.SummaryMaxChunks <= 0 {
		return fmt.Errorf("invalid summarization: SUMMARY_CHUNK_SIZE=%d SUMMARY_MAX_CHUNKS=%d", c.SummaryChunkSize, c.SummaryMaxChunks)
	}
	switch c.IntentClassifier {
	case "always", "llm":
	default:
		return fmt.Errorf("unsupported INTENT_CLASSIFIER %q", c.IntentClassifier)
	}
	return nil
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
		slog.Warn("env value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("env value is not a float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("env value is not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

// getEnvList reads a comma separated list; blank items are dropped.
func getEnvList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
