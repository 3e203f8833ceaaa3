package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Render    RenderConfig    `yaml:"render" mapstructure:"render"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourceConfig identifies the news source to ingest from.
type SourceConfig struct {
	ListingURL   string `yaml:"listing_url" mapstructure:"listing_url"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	ArticlePath  string `yaml:"article_path" mapstructure:"article_path"`
	StrategyFile string `yaml:"strategy_file" mapstructure:"strategy_file"`
}

// RenderConfig configures page rendering.
type RenderConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings for the enrichment stages.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	TranslateModel string `yaml:"translate_model" mapstructure:"translate_model"`
	PolishModel    string `yaml:"polish_model" mapstructure:"polish_model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures stage retry behavior and fan-out.
type PipelineConfig struct {
	StageAttempts int `yaml:"stage_attempts" mapstructure:"stage_attempts"`
	BackoffMillis int `yaml:"backoff_millis" mapstructure:"backoff_millis"`
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// WatchConfig configures the scheduled ingest loop.
type WatchConfig struct {
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NEWSWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "news.db")
	v.SetDefault("source.listing_url", "https://www.bbc.com/news")
	v.SetDefault("source.base_url", "https://www.bbc.com")
	v.SetDefault("source.article_path", "/news/")
	v.SetDefault("render.timeout_secs", 60)
	v.SetDefault("render.user_agent", "Mozilla/5.0 (compatible; NewswireBot/1.0)")
	v.SetDefault("render.requests_per_sec", 1.0)
	v.SetDefault("anthropic.translate_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.polish_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("pipeline.stage_attempts", 3)
	v.SetDefault("pipeline.backoff_millis", 500)
	v.SetDefault("pipeline.max_concurrent", 4)
	v.SetDefault("watch.schedule", "@every 30m")
	v.SetDefault("server.port", 5001)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
