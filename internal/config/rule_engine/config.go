package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI        string  `yaml:"mongo_uri" env:"MONGO_URI" env-required:"true"`
	RabbitURI       string  `yaml:"rabbit_uri" env:"RABBIT_URI" env-required:"true"`
	QueueName       string  `yaml:"queue_name" env:"QUEUE_NAME" env-default:"readings"`
	DBName          string  `yaml:"db_name" env:"DB_NAME" env-default:"envgen"`
	AlertCollection string  `yaml:"alert_collection" env:"ALERT_COLLECTION" env-default:"alerts"`
	SustainedCount  int     `yaml:"sustained_count" env:"SUSTAINED_COUNT" env-default:"10"`
	DeltaNormalized float64 `yaml:"delta_normalized" env:"DELTA_NORMALIZED" env-default:"50"`
	MetricsAddr     string  `yaml:"metrics_addr" env:"METRICS_ADDR" env-default:":9091"`
	LogLevel        string  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("error opening config file: %w", err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	if cfg.SustainedCount < 2 {
		return nil, fmt.Errorf("sustained_count must be at least 2, got %d", cfg.SustainedCount)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
