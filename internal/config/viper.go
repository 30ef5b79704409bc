package config

import (
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// WithViper overlays keys explicitly set in v (config file or bound flags) on
// top of the environment values. Keys use the section.field form of the
// json tags, for example "translate.max_records".
func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		if v == nil {
			return
		}
		setString(v, "system.log_level", &c.System.LogLevel)
		setString(v, "offline.db_path", &c.Offline.DBPath)
		if v.IsSet("offline.quota_bytes") {
			c.Offline.QuotaBytes = v.GetInt64("offline.quota_bytes")
		}

		setString(v, "content.backend", &c.Content.Backend)
		setString(v, "content.catalog_path", &c.Content.CatalogPath)
		setString(v, "content.database_url", &c.Content.DatabaseURL)
		setString(v, "content.kind", &c.Content.Kind)

		setString(v, "translate.provider", &c.Translate.Provider)
		if v.IsSet("translate.fallbacks") {
			c.Translate.Fallbacks = v.GetStringSlice("translate.fallbacks")
		}
		if v.IsSet("translate.source_language") {
			if tag, err := language.Parse(v.GetString("translate.source_language")); err == nil {
				c.Translate.SourceLanguage = tag
			}
		}
		if v.IsSet("translate.target_languages") {
			if tags, err := ParseLanguages(v.GetStringSlice("translate.target_languages")); err == nil && len(tags) > 0 {
				c.Translate.TargetLanguages = tags
			}
		}
		setInt(v, "translate.chunk_size", &c.Translate.ChunkSize)
		setDuration(v, "translate.delay", &c.Translate.Delay)
		setInt(v, "translate.max_records", &c.Translate.MaxRecords)
		setDuration(v, "translate.call_timeout", &c.Translate.CallTimeout)
		setString(v, "translate.cron_expr", &c.Translate.CronExpr)
		if v.IsSet("translate.fields") {
			c.Translate.Fields = v.GetStringSlice("translate.fields")
		}

		setString(v, "providers.google_url", &c.Providers.GoogleURL)
		setString(v, "providers.libre_url", &c.Providers.LibreURL)
		setString(v, "providers.libre_key", &c.Providers.LibreKey)
		setString(v, "providers.gemini_key", &c.Providers.GeminiKey)
		setString(v, "providers.gemini_model", &c.Providers.GeminiModel)
		setString(v, "providers.openai_key", &c.Providers.OpenAIKey)
		setString(v, "providers.openai_url", &c.Providers.OpenAIURL)
		setString(v, "providers.openai_model", &c.Providers.OpenAIModel)

		setInt(v, "breaker.max_failures", &c.Breaker.MaxFailures)
		setDuration(v, "breaker.open_timeout", &c.Breaker.OpenTimeout)

		setString(v, "sync.state_path", &c.Sync.StatePath)
		setString(v, "http.addr", &c.HTTP.Addr)
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		if value := v.GetString(key); value != "" {
			*dst = value
		}
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}
