package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/crypto"
	"github.com/ekaya-inc/gamedash/pkg/tunnel"
)

// DefaultConfigPath is read when present; every field also has an env override.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for gamedash.
// Configuration can come from YAML file (config.yaml), a .env file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Debug    bool   `yaml:"debug" env:"DEBUG" env-default:"false"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// SessionSecret signs the browser session cookie holding the reviews baseline.
	// Required outside local; a random one is generated for local runs.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"`

	Bastion  BastionConfig  `yaml:"bastion"`
	Database DatabaseConfig `yaml:"database"`
	Query    QueryConfig    `yaml:"query"`

	// CredentialsKey decrypts "enc:" values in DB_PASSWORD and BASTION_KEY_PASSPHRASE.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// BastionConfig describes the SSH host the database is reached through.
type BastionConfig struct {
	Enabled        bool          `yaml:"enabled" env:"BASTION_ENABLED" env-default:"false"`
	Host           string        `yaml:"host" env:"BASTION_HOST"`
	Port           int           `yaml:"port" env:"BASTION_PORT" env-default:"22"`
	User           string        `yaml:"user" env:"BASTION_USER" env-default:"ubuntu"`
	KeyPath        string        `yaml:"key_path" env:"BASTION_KEY_PATH"`
	KeyPassphrase  string        `yaml:"-" env:"BASTION_KEY_PASSPHRASE"` // Secret - not in YAML
	KnownHostsPath string        `yaml:"known_hosts" env:"BASTION_KNOWN_HOSTS"`
	InsecureHost   bool          `yaml:"insecure_host_key" env:"BASTION_INSECURE_HOST_KEY" env-default:"false"`
	DialTimeout    time.Duration `yaml:"dial_timeout" env:"BASTION_DIAL_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds the review database connection settings.
type DatabaseConfig struct {
	Type     string `yaml:"type" env:"DB_TYPE" env-default:"mysql"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT"` // 0 uses the dialect's default
	Name     string `yaml:"name" env:"DB_NAME"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	// Path is the database file for the sqlite type.
	Path string `yaml:"path" env:"DB_PATH"`
}

// QueryConfig bounds the rows a query may return.
type QueryConfig struct {
	CataloguePath   string `yaml:"catalogue_path" env:"CATALOGUE_PATH"`
	MaxRowLimit     int    `yaml:"max_row_limit" env:"QUERY_MAX_ROW_LIMIT" env-default:"1000"`
	DefaultRowLimit int    `yaml:"default_row_limit" env:"QUERY_DEFAULT_ROW_LIMIT" env-default:"100"`
	ReviewsRowLimit int    `yaml:"reviews_row_limit" env:"REVIEWS_ROW_LIMIT" env-default:"5000"`
}

// Load reads config.yaml (if present) with environment variable overrides.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom reads configuration from path, falling back to the environment
// alone when the file does not exist. A .env file in the working directory is
// loaded first and never overrides variables already set.
func LoadFrom(path, version string) (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{Version: version}

	if fileExists(path) {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.decryptSecrets(); err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
	}

	if !cfg.Bastion.Enabled {
		cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	}
	cfg.Bastion.Host = ResolveHostForDocker(cfg.Bastion.Host)

	return cfg, nil
}

func loadEnvFile(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s file: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// decryptSecrets replaces "enc:" values with their plaintext.
func (c *Config) decryptSecrets() error {
	secrets := []*string{&c.Database.Password, &c.Bastion.KeyPassphrase}

	var cipher *crypto.SecretCipher
	for _, s := range secrets {
		if !crypto.IsEncrypted(*s) {
			continue
		}
		if cipher == nil {
			if c.CredentialsKey == "" {
				return errors.New("CREDENTIALS_KEY is required to decrypt encrypted secrets")
			}
			var err error
			if cipher, err = crypto.NewSecretCipher(c.CredentialsKey); err != nil {
				return err
			}
		}
		plain, err := cipher.Decrypt(*s)
		if err != nil {
			return err
		}
		*s = plain
	}
	return nil
}

// Validate checks field combinations that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if c.Env != "local" && c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required outside the local environment")
	}

	if err := c.Database.validate(); err != nil {
		return err
	}

	if c.Bastion.Enabled {
		if c.Database.Type == "sqlite" {
			return errors.New("the sqlite database type cannot be reached through a bastion")
		}
		if err := c.Bastion.validate(); err != nil {
			return err
		}
	}

	q := c.Query
	switch {
	case q.MaxRowLimit <= 0:
		return fmt.Errorf("max_row_limit must be positive, got %d", q.MaxRowLimit)
	case q.DefaultRowLimit <= 0 || q.DefaultRowLimit > q.MaxRowLimit:
		return fmt.Errorf("default_row_limit must be between 1 and %d, got %d", q.MaxRowLimit, q.DefaultRowLimit)
	case q.ReviewsRowLimit <= 0:
		return fmt.Errorf("reviews_row_limit must be positive, got %d", q.ReviewsRowLimit)
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Type == "sqlite" {
		if d.Path == "" {
			return errors.New("DB_PATH is required for the sqlite database type")
		}
		return nil
	}
	switch {
	case d.Host == "":
		return errors.New("DB_HOST is required")
	case d.Name == "":
		return errors.New("DB_NAME is required")
	case d.User == "":
		return errors.New("DB_USER is required")
	case d.Port < 0 || d.Port > 65535:
		return fmt.Errorf("DB_PORT %d is out of range", d.Port)
	}
	return nil
}

func (b *BastionConfig) validate() error {
	switch {
	case b.Host == "":
		return errors.New("BASTION_HOST is required when the bastion is enabled")
	case b.User == "":
		return errors.New("BASTION_USER is required when the bastion is enabled")
	case b.KeyPath == "":
		return errors.New("BASTION_KEY_PATH is required when the bastion is enabled")
	case b.KnownHostsPath == "" && !b.InsecureHost:
		return errors.New("BASTION_KNOWN_HOSTS is required unless BASTION_INSECURE_HOST_KEY is set")
	case b.DialTimeout <= 0:
		return fmt.Errorf("BASTION_DIAL_TIMEOUT must be positive, got %s", b.DialTimeout)
	}
	if !fileExists(b.KeyPath) {
		return fmt.Errorf("bastion key file %s does not exist", b.KeyPath)
	}
	return nil
}

// SensitiveValues lists the connection settings that must never appear in a
// log line: bastion and database addresses, accounts, names, paths and secrets.
func (c *Config) SensitiveValues() []string {
	return []string{
		c.Bastion.Host,
		c.Bastion.User,
		c.Bastion.KeyPath,
		c.Bastion.KeyPassphrase,
		c.Database.Host,
		c.Database.Name,
		c.Database.User,
		c.Database.Password,
		c.Database.Path,
		c.CredentialsKey,
	}
}

// Endpoint returns the database endpoint as seen from the bastion (or from
// this host when the bastion is disabled).
func (d *DatabaseConfig) Endpoint() datasource.Endpoint {
	return datasource.Endpoint{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Name,
		User:     d.User,
		Password: d.Password,
		Path:     d.Path,
	}
}

// TunnelConfig returns the tunnel settings; the remote endpoint is filled in
// by the tunnel connector.
func (b *BastionConfig) TunnelConfig() tunnel.Config {
	return tunnel.Config{
		BastionHost:           b.Host,
		BastionPort:           b.Port,
		BastionUser:           b.User,
		KeyPath:               b.KeyPath,
		KeyPassphrase:         b.KeyPassphrase,
		KnownHostsPath:        b.KnownHostsPath,
		InsecureIgnoreHostKey: b.InsecureHost,
		DialTimeout:           b.DialTimeout,
	}
}
