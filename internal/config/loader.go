package config

import (
	"fmt"
	"os"

	"github.com/voralabs/vora/internal/auth"
	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
// Uses Go's built-in os.ExpandEnv which is the idiomatic way to handle this
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/vora/config.yaml",
	"/etc/vora/config.yml",
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	// Set default values
	config := &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "vora",
				User:     "postgres",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				AccessTTL:  "15m",
				RefreshTTL: "7d",
			},
			SessionLimit: 10,
		},
		Frontend: FrontendConfig{
			URL:           "http://localhost:3000",
			SuccessPath:   "/auth/success",
			FailurePath:   "/auth/failure",
			TokenDelivery: "cookie",
		},
		PKCE: PKCEConfig{
			Store:         "memory",
			TTL:           "10m",
			SweepInterval: "5m",
		},
		RateLimit: RateLimitConfig{
			AuthRequests: 5,
			APIRequests:  100,
			WindowMins:   15,
		},
	}

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	// Load configuration from file if it exists
	if configPath != "" && fileExists(configPath) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(filepath string) (*Config, error) {
	return Load(filepath)
}

// LoadFromDefaults loads configuration using only defaults and environment variables
func LoadFromDefaults() (*Config, error) {
	return Load("")
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	if config.Environment != "development" && config.Environment != "production" {
		return fmt.Errorf("environment must be development or production, got %q", config.Environment)
	}

	// Validate PostgreSQL configuration
	if config.Database.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if config.Database.Postgres.Database == "" {
		return fmt.Errorf("postgres database name is required")
	}
	if config.Database.Postgres.User == "" {
		return fmt.Errorf("postgres user is required")
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if config.Auth.JWT.SigningKey == "" {
		return fmt.Errorf("auth.jwt.signing_key is required")
	}
	if _, err := auth.ParseTTL(config.Auth.JWT.AccessTTL); err != nil {
		return fmt.Errorf("auth.jwt.access_ttl: %w", err)
	}
	if _, err := auth.ParseTTL(config.Auth.JWT.RefreshTTL); err != nil {
		return fmt.Errorf("auth.jwt.refresh_ttl: %w", err)
	}

	if !config.Auth.Google.Enabled && !config.Auth.Facebook.Enabled {
		return fmt.Errorf("at least one auth provider must be enabled")
	}
	if config.Auth.Google.Enabled {
		if err := validateProvider("google", config.Auth.Google); err != nil {
			return err
		}
	}
	if config.Auth.Facebook.Enabled {
		if err := validateProvider("facebook", config.Auth.Facebook); err != nil {
			return err
		}
	}

	switch config.Frontend.TokenDelivery {
	case "cookie", "redirect":
	default:
		return fmt.Errorf("frontend.token_delivery must be cookie or redirect, got %q", config.Frontend.TokenDelivery)
	}
	if config.Frontend.URL == "" {
		return fmt.Errorf("frontend.url is required")
	}

	switch config.PKCE.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("pkce.store must be memory or redis, got %q", config.PKCE.Store)
	}
	if _, err := auth.ParseTTL(config.PKCE.TTL); err != nil {
		return fmt.Errorf("pkce.ttl: %w", err)
	}
	if _, err := auth.ParseTTL(config.PKCE.SweepInterval); err != nil {
		return fmt.Errorf("pkce.sweep_interval: %w", err)
	}
	if config.PKCE.Store == "redis" && config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when pkce.store is redis")
	}

	return nil
}

func validateProvider(name string, p ProviderConfig) error {
	if p.ClientID == "" {
		return fmt.Errorf("auth.%s.client_id is required", name)
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("auth.%s.client_secret is required", name)
	}
	if p.CallbackURL == "" {
		return fmt.Errorf("auth.%s.callback_url is required", name)
	}
	return nil
}
