package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
//
// Environment Variables:
// System:
// - DATA_DIR: base directory for database files (default: ./data)
// - LOG_LEVEL: debug|info|warn|error (default: info)
//
// Offline cache:
// - OFFLINE_DB_PATH: SQLite file (default: $DATA_DIR/offline.db)
// - OFFLINE_QUOTA_BYTES: storage quota reported by storage info (default: filesystem capacity)
//
// Content store:
// - CONTENT_BACKEND: file|postgres (default: file)
// - CATALOG_PATH: JSON catalogue file (default: $DATA_DIR/catalogue.json)
// - DATABASE_URL: Postgres DSN, required for the postgres backend
// - CONTENT_KIND: record kind to translate (default: content)
//
// Translation:
// - TRANSLATE_PROVIDER: google|libre|gemini|openai (default: google)
// - TRANSLATE_FALLBACKS: comma separated providers tried after the primary
// - SOURCE_LANGUAGE: (default: en)
// - TARGET_LANGUAGES: comma separated (default: si,ta)
// - TRANSLATE_CHUNK_SIZE: characters per call (default: 4500)
// - TRANSLATE_DELAY: pause between calls (default: 1s)
// - TRANSLATE_MAX_RECORDS: records per run (default: 5)
// - TRANSLATE_CALL_TIMEOUT: per call timeout (default: 30s)
// - TRANSLATE_FIELDS: comma separated field names, empty means every multilingual field
// - CRON_EXPR: sync schedule (default: hourly)
//
// Providers:
// - GOOGLE_TRANSLATE_URL, LIBRE_TRANSLATE_URL, LIBRE_TRANSLATE_API_KEY
// - GEMINI_API_KEY, GEMINI_MODEL
// - OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL
//
// Circuit breaker:
// - BREAKER_MAX_FAILURES (default: 5), BREAKER_OPEN_TIMEOUT (default: 60s)
//
// Sync state and HTTP:
// - SYNC_STATE_PATH: SQLite file for jobs and run reports (default: $DATA_DIR/sync.db)
// - HTTP_ADDR: (default: :8080)
type Config struct {
	System    SystemConfig    `json:"system"`
	Offline   OfflineConfig   `json:"offline"`
	Content   ContentConfig   `json:"content"`
	Translate TranslateConfig `json:"translate"`
	Providers ProvidersConfig `json:"providers"`
	Breaker   BreakerConfig   `json:"breaker"`
	Sync      SyncConfig      `json:"sync"`
	HTTP      HTTPConfig      `json:"http"`
}

type SystemConfig struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
}

type OfflineConfig struct {
	DBPath     string `json:"db_path"`
	QuotaBytes int64  `json:"quota_bytes"`
}

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type ContentConfig struct {
	Backend     string `json:"backend"`
	CatalogPath string `json:"catalog_path"`
	DatabaseURL string `json:"-"`
	Kind        string `json:"kind"`
}

type TranslateConfig struct {
	Provider        string         `json:"provider"`
	Fallbacks       []string       `json:"fallbacks"`
	SourceLanguage  language.Tag   `json:"source_language"`
	TargetLanguages []language.Tag `json:"target_languages"`
	ChunkSize       int            `json:"chunk_size"`
	Delay           time.Duration  `json:"delay"`
	MaxRecords      int            `json:"max_records"`
	CallTimeout     time.Duration  `json:"call_timeout"`
	CronExpr        string         `json:"cron_expr"`
	Fields          []string       `json:"fields"`
}

// ProvidersConfig holds per-provider endpoints and credentials.
type ProvidersConfig struct {
	GoogleURL   string `json:"google_url"`
	LibreURL    string `json:"libre_url"`
	LibreKey    string `json:"-"`
	GeminiKey   string `json:"-"`
	GeminiModel string `json:"gemini_model"`
	OpenAIKey   string `json:"-"`
	OpenAIURL   string `json:"openai_url"`
	OpenAIModel string `json:"openai_model"`
}

type BreakerConfig struct {
	MaxFailures int           `json:"max_failures"`
	OpenTimeout time.Duration `json:"open_timeout"`
}

type SyncConfig struct {
	StatePath string `json:"state_path"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

const (
	ProviderGoogle = "google"
	ProviderLibre  = "libre"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var knownProviders = map[string]bool{
	ProviderGoogle: true,
	ProviderLibre:  true,
	ProviderGemini: true,
	ProviderOpenAI: true,
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	dataDir := getEnvString("DATA_DIR", "./data")
	config := &Config{
		System: SystemConfig{
			DataDir:  dataDir,
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
		Offline: OfflineConfig{
			DBPath:     getEnvString("OFFLINE_DB_PATH", filepath.Join(dataDir, "offline.db")),
			QuotaBytes: getEnvInt64("OFFLINE_QUOTA_BYTES", 0),
		},
		Content: ContentConfig{
			Backend:     getEnvString("CONTENT_BACKEND", BackendFile),
			CatalogPath: getEnvString("CATALOG_PATH", filepath.Join(dataDir, "catalogue.json")),
			DatabaseURL: getEnvString("DATABASE_URL", ""),
			Kind:        getEnvString("CONTENT_KIND", "content"),
		},
		Translate: TranslateConfig{
			Provider:        getEnvString("TRANSLATE_PROVIDER", ProviderGoogle),
			Fallbacks:       getEnvList("TRANSLATE_FALLBACKS", nil),
			SourceLanguage:  getEnvLanguage("SOURCE_LANGUAGE", language.English),
			TargetLanguages: getEnvLanguages("TARGET_LANGUAGES", []language.Tag{language.Sinhala, language.Tamil}),
			ChunkSize:       getEnvInt("TRANSLATE_CHUNK_SIZE", 4500),
			Delay:           getEnvDuration("TRANSLATE_DELAY", time.Second),
			MaxRecords:      getEnvInt("TRANSLATE_MAX_RECORDS", 5),
			CallTimeout:     getEnvDuration("TRANSLATE_CALL_TIMEOUT", 30*time.Second),
			CronExpr:        getEnvString("CRON_EXPR", "0 * * * *"),
			Fields:          getEnvList("TRANSLATE_FIELDS", nil),
		},
		Providers: ProvidersConfig{
			GoogleURL:   getEnvString("GOOGLE_TRANSLATE_URL", "https://translate.googleapis.com/translate_a/single"),
			LibreURL:    getEnvString("LIBRE_TRANSLATE_URL", "https://libretranslate.com"),
			LibreKey:    getEnvString("LIBRE_TRANSLATE_API_KEY", ""),
			GeminiKey:   getEnvString("GEMINI_API_KEY", ""),
			GeminiModel: getEnvString("GEMINI_MODEL", "gemini-1.5-flash"),
			OpenAIKey:   getEnvString("OPENAI_API_KEY", ""),
			OpenAIURL:   getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel: getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Breaker: BreakerConfig{
			MaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 5),
			OpenTimeout: getEnvDuration("BREAKER_OPEN_TIMEOUT", time.Minute),
		},
		Sync: SyncConfig{
			StatePath: getEnvString("SYNC_STATE_PATH", filepath.Join(dataDir, "sync.db")),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: backend=%s providers=%v targets=%v cron=%q",
		config.Content.Backend, config.ProviderChain(), LanguageCodes(config.Translate.TargetLanguages), config.Translate.CronExpr)
	return config, nil
}

// ProviderChain returns the primary provider followed by its fallbacks, without duplicates.
func (c *Config) ProviderChain() []string {
	seen := make(map[string]bool)
	chain := make([]string, 0, 1+len(c.Translate.Fallbacks))
	for _, name := range append([]string{c.Translate.Provider}, c.Translate.Fallbacks...) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	return chain
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Offline.DBPath) == "" {
		return errs.New(errs.ErrConfig, "OFFLINE_DB_PATH is required")
	}
	switch c.Content.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Content.CatalogPath) == "" {
			return errs.New(errs.ErrConfig, "CATALOG_PATH is required for the file backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Content.DatabaseURL) == "" {
			return errs.New(errs.ErrConfig, "DATABASE_URL is required for the postgres backend")
		}
	default:
		return errs.Newf(errs.ErrConfig, "unknown CONTENT_BACKEND %q", c.Content.Backend)
	}
	if strings.TrimSpace(c.Content.Kind) == "" {
		return errs.New(errs.ErrConfig, "CONTENT_KIND is required")
	}

	for _, name := range c.ProviderChain() {
		if !knownProviders[name] {
			return errs.Newf(errs.ErrConfig, "unknown translation provider %q", name)
		}
		if name == ProviderGemini && c.Providers.GeminiKey == "" {
			return errs.New(errs.ErrConfig, "GEMINI_API_KEY is required for the gemini provider")
		}
		if name == ProviderOpenAI && c.Providers.OpenAIKey == "" {
			return errs.New(errs.ErrConfig, "OPENAI_API_KEY is required for the openai provider")
		}
	}
	if len(c.Translate.TargetLanguages) == 0 {
		return errs.New(errs.ErrConfig, "TARGET_LANGUAGES must name at least one language")
	}
	if c.Translate.ChunkSize <= 0 {
		return errs.New(errs.ErrConfig, "TRANSLATE_CHUNK_SIZE must be positive")
	}
	if c.Translate.MaxRecords <= 0 {
		return errs.New(errs.ErrConfig, "TRANSLATE_MAX_RECORDS must be positive")
	}
	if c.Translate.Delay < 0 {
		return errs.New(errs.ErrConfig, "TRANSLATE_DELAY must not be negative")
	}
	if _, err := cron.ParseStandard(c.Translate.CronExpr); err != nil {
		return errs.Wrap(err, errs.ErrConfig, "invalid CRON_EXPR")
	}
	if c.Breaker.MaxFailures <= 0 {
		return errs.New(errs.ErrConfig, "BREAKER_MAX_FAILURES must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or a bare number of milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return splitList(value)
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}

func getEnvLanguages(key string, defaultValue []language.Tag) []language.Tag {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	tags, err := ParseLanguages(splitList(value))
	if err != nil {
		log.Warn("Ignoring %s: %v", key, err)
		return defaultValue
	}
	return tags
}

// ParseLanguages parses BCP 47 codes, rejecting the whole list on the first bad code.
func ParseLanguages(codes []string) ([]language.Tag, error) {
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", code, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// LanguageCodes renders tags back to their string form.
func LanguageCodes(tags []language.Tag) []string {
	codes := make([]string, 0, len(tags))
	for _, tag := range tags {
		codes = append(codes, tag.String())
	}
	return codes
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
