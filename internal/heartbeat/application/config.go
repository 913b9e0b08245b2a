package application

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines heartbeat sweep configuration.
type Config struct {
	Threshold  time.Duration `yaml:"threshold"`
	Interval   time.Duration `yaml:"interval"`
	WebhookURL string        `yaml:"webhook_url"`
}

// LoadConfig loads sweep config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Threshold:  getenvDuration("HEARTBEAT_THRESHOLD", 5*time.Minute),
		Interval:   getenvDuration("HEARTBEAT_INTERVAL", time.Minute),
		WebhookURL: os.Getenv("HEARTBEAT_WEBHOOK_URL"),
	}

	if path := os.Getenv("HEARTBEAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Threshold <= 0 {
		return cfg, errors.New("heartbeat: threshold must be positive")
	}
	if cfg.Interval <= 0 {
		return cfg, errors.New("heartbeat: interval must be positive")
	}
	return cfg, nil
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
