package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML. Secrets may be
// overridden through environment variables.
type FileConfig struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	FrontendOrigin string   `yaml:"frontendOrigin"`
	TrustedProxies []string `yaml:"trustedProxies"`

	DatabaseURL string `yaml:"databaseURL"`

	SessionBackend string `yaml:"sessionBackend"` // jwt | redis | memory
	SessionSecret  string `yaml:"sessionSecret"`
	SessionTTL     string `yaml:"sessionTTL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	AuthRateLimit  int    `yaml:"authRateLimit"`
	AuthRateWindow string `yaml:"authRateWindow"`

	OpenAIBaseURL  string `yaml:"openAIBaseURL"`
	OpenAIAPIKey   string `yaml:"openAIAPIKey"`
	OpenAIModel    string `yaml:"openAIModel"`
	AIReplyTimeout string `yaml:"aiReplyTimeout"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	AMQPURL   string `yaml:"amqpURL"`
	MailQueue string `yaml:"mailQueue"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.SessionBackend {
	case "", "jwt":
		if cfg.SessionSecret == "" {
			return errors.New("config: sessionSecret is required for jwt sessions (set in config.yaml or SESSION_SECRET)")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for redis sessions")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown session backend %q", cfg.SessionBackend)
	}
	return nil
}

// ParseSessionTTL parses the session TTL, defaulting to 7 days.
func ParseSessionTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 7 * 24 * time.Hour, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse session TTL: %w", err)
	}
	if ttl <= 0 {
		return 0, errors.New("session TTL must be positive")
	}
	return ttl, nil
}

// ParseAIReplyTimeout parses the AI reply timeout, defaulting to 45s.
func ParseAIReplyTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 45 * time.Second, nil
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse ai reply timeout: %w", err)
	}
	if timeout <= 0 {
		return 0, errors.New("ai reply timeout must be positive")
	}
	return timeout, nil
}

// ParseAuthRateWindow parses the auth rate-limit window, defaulting to 1m.
func ParseAuthRateWindow(raw string) (time.Duration, error) {
	if raw == "" {
		return time.Minute, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse auth rate window: %w", err)
	}
	if window <= 0 {
		return 0, errors.New("auth rate window must be positive")
	}
	return window, nil
}
