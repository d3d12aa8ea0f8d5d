package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config — настройки подключения к object storage.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// ConfigFromEnv читает конфигурацию из переменных окружения
// с дефолтами для локальной разработки.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Endpoint:  envString("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: envString("MINIO_ACCESS_KEY", "reputa"),
		SecretKey: envString("MINIO_SECRET_KEY", "reputaminio"),
		Region:    envString("MINIO_REGION", "us-east-1"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:    envString("MINIO_BUCKET", "reputa-artifacts"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет конфигурацию.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
