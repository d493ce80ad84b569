package config

import (
	"fmt"
)

// Config represents the application configuration
type Config struct {
	Environment string          `yaml:"environment"` // development, production
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Redis       RedisConfig     `yaml:"redis"`
	Auth        AuthConfig      `yaml:"auth"`
	Frontend    FrontendConfig  `yaml:"frontend"`
	PKCE        PKCEConfig      `yaml:"pkce"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds general server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"` // disable, require, verify-ca, verify-full
}

// RedisConfig holds redis connection settings, used when pkce.store is
// "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT          JWTConfig      `yaml:"jwt"`
	SessionLimit int            `yaml:"session_limit"` // informational, entity enforces the cap
	Google       ProviderConfig `yaml:"google"`
	Facebook     ProviderConfig `yaml:"facebook"`
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	SigningKey string `yaml:"signing_key"` // Secret key for signing JWTs
	AccessTTL  string `yaml:"access_ttl"`  // e.g. "15m"
	RefreshTTL string `yaml:"refresh_ttl"` // e.g. "7d"
}

// ProviderConfig holds OAuth provider configuration
type ProviderConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	CallbackURL  string   `yaml:"callback_url"`
	Scopes       []string `yaml:"scopes,omitempty"`
	Enabled      bool     `yaml:"enabled"`
}

// FrontendConfig describes where to send the browser after a login attempt
// and how to hand tokens over.
type FrontendConfig struct {
	URL           string `yaml:"url"`
	SuccessPath   string `yaml:"success_path"`
	FailurePath   string `yaml:"failure_path"`
	TokenDelivery string `yaml:"token_delivery"` // cookie, redirect
}

// PKCEConfig controls the pending-login store.
type PKCEConfig struct {
	Store         string `yaml:"store"`          // memory, redis
	TTL           string `yaml:"ttl"`            // e.g. "10m"
	SweepInterval string `yaml:"sweep_interval"` // memory store only, e.g. "5m"
}

// RateLimitConfig controls the per-IP request limiters.
type RateLimitConfig struct {
	AuthRequests int `yaml:"auth_requests"` // per window on auth endpoints
	APIRequests  int `yaml:"api_requests"`  // per window on the general API
	WindowMins   int `yaml:"window_mins"`
}

// IsProduction reports whether the service runs with production hardening
// (secure cookies, SameSite=None).
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SuccessRedirectURL returns the frontend URL for successful logins.
func (f *FrontendConfig) SuccessRedirectURL() string {
	return f.URL + f.SuccessPath
}

// FailureRedirectURL returns the frontend URL for failed logins.
func (f *FrontendConfig) FailureRedirectURL() string {
	return f.URL + f.FailurePath
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
