package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "DAILYNEWS_CONFIG"

	databasePathEnv = "DATABASE_PATH"

	translateMethodEnv   = "AUTO_TRANSLATE_METHOD"
	translateTargetEnv   = "AUTO_TRANSLATE_TARGET"
	translateSourceEnv   = "AUTO_TRANSLATE_SOURCE"
	translateBatchEnv    = "AUTO_TRANSLATE_BATCH_SIZE"
	translateDelayEnv    = "AUTO_TRANSLATE_DELAY"
	translateIntervalEnv = "AUTO_TRANSLATE_INTERVAL_MINUTES"
	myMemoryEmailEnv     = "MYMEMORY_EMAIL"

	geminiCmdEnv    = "GEMINI_CLI_CMD"
	geminiAPIKeyEnv = "GEMINI_API_KEY"
	geminiModelEnv  = "GEMINI_MODEL"
	geminiProxyEnv  = "GEMINI_PROXY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Translation TranslationConfig `yaml:"translation"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig describes the HTTP control surface listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines fallback intervals for fetch jobs.
type SchedulerConfig struct {
	DefaultIntervalMinutes int `yaml:"defaultIntervalMinutes"`
}

// TranslationConfig is the process-wide translation policy. It is read once
// per worker run; changes apply on the next run.
type TranslationConfig struct {
	Method          string  `yaml:"method"` // free | gemini | none
	TargetLang      string  `yaml:"targetLang"`
	SourceLang      string  `yaml:"sourceLang"`
	BatchSize       int     `yaml:"batchSize"`
	DelaySeconds    float64 `yaml:"delaySeconds"`
	IntervalMinutes int     `yaml:"intervalMinutes"`
	MyMemoryEmail   string  `yaml:"myMemoryEmail"`
}

// GeminiConfig wires the generative CLI and its SDK fallback.
type GeminiConfig struct {
	Cmd    string `yaml:"cmd"`
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
	Proxy  string `yaml:"proxy"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(translateMethodEnv); v != "" {
		c.Translation.Method = v
	}
	if v := os.Getenv(translateTargetEnv); v != "" {
		c.Translation.TargetLang = v
	}
	if v := os.Getenv(translateSourceEnv); v != "" {
		c.Translation.SourceLang = v
	}
	if v := os.Getenv(translateBatchEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Translation.BatchSize = n
		}
	}
	if v := os.Getenv(translateDelayEnv); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Translation.DelaySeconds = f
		}
	}
	if v := os.Getenv(translateIntervalEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Translation.IntervalMinutes = n
		}
	}
	if v := os.Getenv(myMemoryEmailEnv); v != "" {
		c.Translation.MyMemoryEmail = v
	}

	if v := os.Getenv(geminiCmdEnv); v != "" {
		c.Gemini.Cmd = v
	}
	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv(geminiProxyEnv); v != "" {
		c.Gemini.Proxy = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server = override.Server
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.DefaultIntervalMinutes > 0 {
		base.Scheduler = override.Scheduler
	}

	if override.Translation.Method != "" {
		base.Translation.Method = override.Translation.Method
	}
	if override.Translation.TargetLang != "" {
		base.Translation.TargetLang = override.Translation.TargetLang
	}
	if override.Translation.SourceLang != "" {
		base.Translation.SourceLang = override.Translation.SourceLang
	}
	if override.Translation.BatchSize > 0 {
		base.Translation.BatchSize = override.Translation.BatchSize
	}
	if override.Translation.DelaySeconds > 0 {
		base.Translation.DelaySeconds = override.Translation.DelaySeconds
	}
	if override.Translation.IntervalMinutes != 0 {
		base.Translation.IntervalMinutes = override.Translation.IntervalMinutes
	}
	if override.Translation.MyMemoryEmail != "" {
		base.Translation.MyMemoryEmail = override.Translation.MyMemoryEmail
	}

	if override.Gemini.Cmd != "" {
		base.Gemini.Cmd = override.Gemini.Cmd
	}
	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.Proxy != "" {
		base.Gemini.Proxy = override.Gemini.Proxy
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Server:    ServerConfig{Addr: ":5000"},
		Database:  DatabaseConfig{Path: "data/dailynews.db"},
		Scheduler: SchedulerConfig{DefaultIntervalMinutes: 60},
		Translation: TranslationConfig{
			Method:          "free",
			TargetLang:      "zh-CN",
			SourceLang:      "en",
			BatchSize:       10,
			DelaySeconds:    2.0,
			IntervalMinutes: 10,
		},
		Gemini: GeminiConfig{
			Cmd:   "gemini",
			Model: "gemini-1.5-flash",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
