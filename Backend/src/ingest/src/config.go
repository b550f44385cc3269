package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const defaultPattern = "202406-citibike-tripdata_*.csv"

type Config struct {
	RawDir     string `yaml:"raw_dir"`
	Pattern    string `yaml:"pattern"`
	DBPath     string `yaml:"db_path"`
	ExportPath string `yaml:"export_path"`
	RabbitURL  string `yaml:"rabbitmq_url"`
	Exchange   string `yaml:"events_exchange"`
	LogLevel   string `yaml:"log_level"`
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func defaultConfig() Config {
	return Config{
		RawDir:     "data/raw",
		Pattern:    defaultPattern,
		DBPath:     "data/ingest.db",
		ExportPath: "data/demand_forecast.json",
		Exchange:   "citibike.events",
		LogLevel:   "info",
	}
}

// LoadConfig aplica defaults, luego el YAML (si path != "") y al final el entorno.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.RawDir = getenv("INGEST_RAW_DIR", cfg.RawDir)
	cfg.Pattern = getenv("INGEST_PATTERN", cfg.Pattern)
	cfg.DBPath = getenv("INGEST_DB_PATH", cfg.DBPath)
	cfg.ExportPath = getenv("INGEST_EXPORT_PATH", cfg.ExportPath)
	cfg.RabbitURL = getenv("RABBITMQ_URL", cfg.RabbitURL)
	cfg.Exchange = getenv("EVENTS_EXCHANGE", cfg.Exchange)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)

	if strings.TrimSpace(cfg.Pattern) == "" {
		cfg.Pattern = defaultPattern
	}
	if strings.TrimSpace(cfg.RawDir) == "" {
		return cfg, fmt.Errorf("raw_dir is required")
	}
	return cfg, nil
}

func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
