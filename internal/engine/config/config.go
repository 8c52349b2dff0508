package config

import (
	"time"

	"earnings-call-engine/pkg/config"
)

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string        `mapstructure:"api_key"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimension  int           `mapstructure:"embedding_dimension"`
	GenerationModel     string        `mapstructure:"generation_model"`
	Temperature         float32       `mapstructure:"temperature"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int           `mapstructure:"max_token_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// OpenAI holds the configuration for an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// AI selects the model providers.
type AI struct {
	EmbeddingProvider string `mapstructure:"embedding_provider"`
}

// RAG holds chunking and retrieval settings.
type RAG struct {
	ChunkMaxChars      int `mapstructure:"chunk_max_chars"`
	ChunkOverlapChars  int `mapstructure:"chunk_overlap_chars"`
	EmbedBatchSize     int `mapstructure:"embed_batch_size"`
	ContextK           int `mapstructure:"context_k"`
	SearchDefaultK     int `mapstructure:"search_default_k"`
	MaxUploadSizeBytes int `mapstructure:"max_upload_size_bytes"`
}

// Report holds report cache and synthesis settings.
type Report struct {
	CacheTTL                  time.Duration `mapstructure:"cache_ttl"`
	MalformedAlertThreshold   int           `mapstructure:"malformed_alert_threshold"`
	NotifyEvaluations         bool          `mapstructure:"notify_evaluations"`
	EvaluationAlertScoreBelow float64       `mapstructure:"evaluation_alert_score_below"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Source holds settings for fetching transcripts from the web.
type Source struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SeenLinksTTL time.Duration `mapstructure:"seen_links_ttl"`
}

// Worker holds settings for the embedding worker.
type Worker struct {
	StreamTimeout    time.Duration `mapstructure:"stream_timeout"`
	BackfillSchedule string        `mapstructure:"backfill_schedule"`
	BackfillTimeout  time.Duration `mapstructure:"backfill_timeout"`
	RetryInterval    time.Duration `mapstructure:"retry_interval"`
	RetryMinIdle     time.Duration `mapstructure:"retry_min_idle"`
	MaxDeliveries    int           `mapstructure:"max_deliveries"`
}

// Config holds the full configuration for the engine services.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Gemini   Gemini          `mapstructure:"gemini"`
	OpenAI   OpenAI          `mapstructure:"openai"`
	AI       AI              `mapstructure:"ai"`
	RAG      RAG             `mapstructure:"rag"`
	Report   Report          `mapstructure:"report"`
	Telegram Telegram        `mapstructure:"telegram"`
	Source   Source          `mapstructure:"source"`
	Worker   Worker          `mapstructure:"worker"`
}

var defaults = map[string]interface{}{
	"app.name":                            "earnings-call-engine",
	"app.env":                             "development",
	"logger.level":                        "info",
	"logger.encoding":                     "json",
	"database.url":                        "",
	"database.max_idle_conns":             5,
	"database.max_open_conns":             20,
	"database.conn_max_lifetime":          "30m",
	"redis.enabled":                       false,
	"redis.stream_max_len":                10000,
	"api.port":                            8080,
	"gemini.api_key":                      "",
	"gemini.embedding_model":              "text-embedding-004",
	"gemini.embedding_dimension":          768,
	"gemini.generation_model":             "gemini-2.5-flash",
	"gemini.temperature":                  0.2,
	"gemini.max_request_per_minute":       60,
	"gemini.max_token_per_minute":         1000000,
	"gemini.timeout":                      "90s",
	"openai.api_key":                      "",
	"openai.batch_size":                   32,
	"openai.timeout":                      "60s",
	"ai.embedding_provider":               "gemini",
	"rag.chunk_max_chars":                 1200,
	"rag.chunk_overlap_chars":             200,
	"rag.embed_batch_size":                32,
	"rag.context_k":                       4,
	"rag.search_default_k":                8,
	"rag.max_upload_size_bytes":           10 << 20,
	"report.cache_ttl":                    "30m",
	"report.malformed_alert_threshold":    3,
	"report.notify_evaluations":           false,
	"report.evaluation_alert_score_below": 0.6,
	"telegram.enabled":                    false,
	"telegram.bot_token":                  "",
	"telegram.chat_id":                    0,
	"source.user_agent":                   "Mozilla/5.0 (compatible; earnings-call-engine/1.0)",
	"source.timeout":                      "30s",
	"source.seen_links_ttl":               "24h",
	"worker.stream_timeout":               "10m",
	"worker.backfill_schedule":            "@every 10m",
	"worker.backfill_timeout":             "30m",
	"worker.retry_interval":               "1m",
	"worker.retry_min_idle":               "5m",
	"worker.max_deliveries":               3,
}

// Load loads the engine configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg, config.WithDefaults(defaults)); err != nil {
		return nil, err
	}
	return &cfg, nil
}
