package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/evalprobe/evalprobe"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Data    DataConfig    `mapstructure:"data"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Inspect InspectConfig `mapstructure:"inspect"`
	Log     LogConfig     `mapstructure:"log"`
}

// ModelConfig stores where the tokenizer comes from.
type ModelConfig struct {
	Path        string `mapstructure:"path"`
	Backend     string `mapstructure:"backend"`
	HubCacheDir string `mapstructure:"hubCacheDir"`
	AuthToken   string `mapstructure:"authToken"`
	Revision    string `mapstructure:"revision"`
}

// DataConfig stores dataset construction settings.
type DataConfig struct {
	Dir           string `mapstructure:"dir"`
	Task          string `mapstructure:"task"`
	MaxLength     int    `mapstructure:"maxLength"`
	UseChatFormat bool   `mapstructure:"useChatFormat"`
	ChatFormat    string `mapstructure:"chatFormat"`
	CacheDir      string `mapstructure:"cacheDir"`
	Workers       int    `mapstructure:"workers"`
}

// LoaderConfig stores batching settings.
type LoaderConfig struct {
	BatchSize   int    `mapstructure:"batchSize"`
	PaddingSide string `mapstructure:"paddingSide"`
}

// InspectConfig stores settings of the inspection run itself.
type InspectConfig struct {
	Limit             int  `mapstructure:"limit"`
	SkipSpecialTokens bool `mapstructure:"skipSpecialTokens"`
	Report            bool `mapstructure:"report"`
	Strict            bool `mapstructure:"strict"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("model.path", internal.DefaultModelPath)
	v.SetDefault("model.backend", "auto")
	v.SetDefault("model.hubCacheDir", internal.DefaultHubCache)
	v.SetDefault("model.authToken", "")
	v.SetDefault("model.revision", "main")

	v.SetDefault("data.dir", internal.DefaultDataDir)
	v.SetDefault("data.task", internal.DefaultTask)
	v.SetDefault("data.maxLength", internal.DefaultMaxLength)
	v.SetDefault("data.useChatFormat", true)
	v.SetDefault("data.chatFormat", internal.DefaultChatFormat)
	v.SetDefault("data.cacheDir", internal.DefaultDataCache)
	v.SetDefault("data.workers", 0)

	v.SetDefault("loader.batchSize", internal.DefaultBatchSize)
	v.SetDefault("loader.paddingSide", "right")

	v.SetDefault("inspect.limit", internal.DefaultLimit)
	v.SetDefault("inspect.skipSpecialTokens", false)
	v.SetDefault("inspect.report", true)
	v.SetDefault("inspect.strict", false)

	v.SetDefault("log.level", "info")

	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // model.path becomes MODEL_PATH

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.Model.AuthToken == "" {
		cfg.Model.AuthToken = os.Getenv("HF_TOKEN")
	}
	cfg.Model.HubCacheDir = expandHome(cfg.Model.HubCacheDir)
	cfg.Data.CacheDir = expandHome(cfg.Data.CacheDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return &AppConfig, nil
}

// Validate rejects settings no run could succeed with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.Path) == "" {
		return fmt.Errorf("model.path cannot be empty")
	}
	if c.Data.MaxLength <= 0 {
		return fmt.Errorf("data.maxLength must be positive: %d", c.Data.MaxLength)
	}
	if c.Loader.BatchSize <= 0 {
		return fmt.Errorf("loader.batchSize must be positive: %d", c.Loader.BatchSize)
	}
	if c.Inspect.Limit < 0 {
		return fmt.Errorf("inspect.limit cannot be negative: %d", c.Inspect.Limit)
	}
	switch c.Loader.PaddingSide {
	case "left", "right":
	default:
		return fmt.Errorf("loader.paddingSide must be left or right: %q", c.Loader.PaddingSide)
	}
	return nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~/"))
}
