package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/file"
)

const DefaultRuntimeSettingsFile = "./data/settings.json"

// RuntimeSettings are the knobs an operator can change while the service runs.
type RuntimeSettings struct {
	Provider        string   `json:"provider"`
	CronExpr        string   `json:"cron_expr"`
	TargetLanguages []string `json:"target_languages"`
	MaxRecords      int      `json:"max_records"`
	DelayMillis     int64    `json:"delay_ms"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !knownProviders[provider] {
		return fmt.Errorf("unknown provider %q", s.Provider)
	}
	if strings.TrimSpace(s.CronExpr) == "" {
		return fmt.Errorf("cron_expr is required")
	}
	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron_expr: %w", err)
	}
	if len(s.TargetLanguages) == 0 {
		return fmt.Errorf("target_languages is required")
	}
	if _, err := ParseLanguages(s.TargetLanguages); err != nil {
		return fmt.Errorf("invalid target_languages: %w", err)
	}
	if s.MaxRecords <= 0 {
		return fmt.Errorf("max_records must be positive")
	}
	if s.DelayMillis < 0 {
		return fmt.Errorf("delay_ms must not be negative")
	}
	return nil
}

func (s RuntimeSettings) Delay() time.Duration {
	return time.Duration(s.DelayMillis) * time.Millisecond
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		Provider:        c.Translate.Provider,
		CronExpr:        c.Translate.CronExpr,
		TargetLanguages: LanguageCodes(c.Translate.TargetLanguages),
		MaxRecords:      c.Translate.MaxRecords,
		DelayMillis:     c.Translate.Delay.Milliseconds(),
	}
}

// WithRuntimeSettings applies the non-empty values of a settings file.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.Provider) != "" {
			c.Translate.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
		}
		if strings.TrimSpace(settings.CronExpr) != "" {
			c.Translate.CronExpr = settings.CronExpr
		}
		if tags, err := ParseLanguages(settings.TargetLanguages); err == nil && len(tags) > 0 {
			c.Translate.TargetLanguages = tags
		}
		if settings.MaxRecords > 0 {
			c.Translate.MaxRecords = settings.MaxRecords
		}
		if settings.DelayMillis > 0 {
			c.Translate.Delay = settings.Delay()
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')
	return file.WriteAtomic(path, content, 0o600)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	next.Provider = strings.ToLower(strings.TrimSpace(next.Provider))
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
