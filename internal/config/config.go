package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Completion CompletionConfig `mapstructure:"completion"`
	Models     ModelsConfig     `mapstructure:"models"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// UpstreamConfig describes the OpenAI-compatible gateway every candidate
// model is reached through.
type UpstreamConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Retries        int    `mapstructure:"retries"`
	BackoffMS      []int  `mapstructure:"backoff_ms"`
}

func (c UpstreamConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CompletionConfig holds request defaults applied when the caller omits a
// sampling parameter.
type CompletionConfig struct {
	DefaultTemperature float64 `mapstructure:"default_temperature"`
	DefaultMaxTokens   int     `mapstructure:"default_max_tokens"`
}

type ModelsConfig struct {
	Fallbacks []ModelCandidateConfig `mapstructure:"fallbacks"`
}

type ModelCandidateConfig struct {
	ID             string `mapstructure:"id"`
	Priority       int    `mapstructure:"priority"`
	VoiceOptimized bool   `mapstructure:"voice_optimized"`
}

type QuotaConfig struct {
	Limit         int    `mapstructure:"limit"`
	WindowSeconds int    `mapstructure:"window_seconds"`
	Store         string `mapstructure:"store"`
}

func (c QuotaConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

func LoadConfig(configPath string, envPath string) (*Config, error) {
	// Load .env first so AutomaticEnv can see its values
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("upstream.timeout_seconds", 60)
	viper.SetDefault("upstream.retries", 2)
	viper.SetDefault("upstream.backoff_ms", []int{500, 1500})
	viper.SetDefault("completion.default_temperature", 1.0)
	viper.SetDefault("completion.default_max_tokens", 1024)
	viper.SetDefault("quota.window_seconds", 86400)
	viper.SetDefault("quota.store", "memory")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Upstream.APIKey == "" {
		config.Upstream.APIKey = viper.GetString("UPSTREAM_API_KEY")
	}
	if config.JWT.SecretKey == "" {
		config.JWT.SecretKey = viper.GetString("JWT_SECRET_KEY")
	}

	return &config, nil
}
