package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type AssistConfig struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	UploadDir      string        `mapstructure:"upload_dir"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	Secret         string        `mapstructure:"secret"`
	SendQueue      int           `mapstructure:"send_queue"`
	RateInterval   time.Duration `mapstructure:"rate_interval"`
	HistoryContext int           `mapstructure:"history_context"`
	Assist         AssistConfig  `mapstructure:"assist"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "./web")
	v.SetDefault("upload_dir", "./data/images")
	v.SetDefault("max_upload_bytes", 20<<20)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_queue", 32)
	v.SetDefault("rate_interval", "1s")
	v.SetDefault("history_context", 5)
	v.SetDefault("assist.url", "https://text.pollinations.ai/openai")
	v.SetDefault("assist.model", "gpt-3.5-turbo")
	v.SetDefault("assist.timeout", "15s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
