// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the forwarder.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Relay provider names accepted in Relay.Provider.
const (
	RelaySES    = "ses"
	RelayGraph  = "graph"
	RelaySMTP   = "smtp"
	RelayStdout = "stdout"
)

// Config holds the complete application configuration. It is loaded once
// at process start and passed by value afterwards.
type Config struct {
	AWS     AWSConfig     `yaml:"aws"`
	Store   StoreConfig   `yaml:"store"`
	Routing RoutingConfig `yaml:"routing"`
	Relay   RelayConfig   `yaml:"relay"`
	Debug   DebugConfig   `yaml:"debug"`
	Logging LoggingConfig `yaml:"logging"`
}

// AWSConfig holds AWS client configuration. The static keys are meant for
// local runs; when unset the default credential chain is used.
type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// StoreConfig locates the messages SES writes to S3.
type StoreConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// RoutingConfig holds the forwarding destination.
type RoutingConfig struct {
	// Sender overrides From on forwarded mail. If empty, the SES recipient
	// address is used.
	Sender    string `yaml:"sender"`
	Recipient string `yaml:"recipient"`
}

// RelayConfig selects and configures the outbound relay.
type RelayConfig struct {
	Provider string      `yaml:"provider"`
	SMTP     SMTPConfig  `yaml:"smtp"`
	Graph    GraphConfig `yaml:"graph"`
}

// SMTPConfig holds SMTP submission relay configuration.
type SMTPConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// DebugConfig holds fault-injection switches used to test the error path.
type DebugConfig struct {
	// LargeBody replaces every forwarded body with a 20 MB text body so the
	// relay rejects it.
	LargeBody bool `yaml:"large_body"`
	// LogBody logs the full forwarded message at info level.
	LogBody bool `yaml:"log_body"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// Validate reports every missing or inconsistent setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Bucket == "" {
		errs = append(errs, errors.New("MailS3Bucket is required"))
	}
	if c.Routing.Recipient == "" {
		errs = append(errs, errors.New("MailRecipient is required"))
	}

	switch c.Relay.Provider {
	case RelaySES, RelayStdout:
	case RelaySMTP:
		if c.Relay.SMTP.Addr == "" {
			errs = append(errs, errors.New("SMTP_RELAY_ADDR is required for the smtp relay"))
		}
	case RelayGraph:
		if !c.GraphConfigured() {
			errs = append(errs, errors.New("GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required for the graph relay"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown relay provider %q", c.Relay.Provider))
	}

	return errors.Join(errs...)
}

// StaticCredentials returns true if both static AWS keys are set.
func (c *Config) StaticCredentials() bool {
	return c.AWS.AccessKeyID != "" && c.AWS.SecretAccessKey != ""
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Relay.Graph.TenantID != "" &&
		c.Relay.Graph.ClientID != "" &&
		c.Relay.Graph.ClientSecret != "" &&
		c.Relay.Graph.Sender != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.AWS.Region = "us-east-1"
	c.Relay.Provider = RelaySES
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("Region"); v != "" {
		c.AWS.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.AWS.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.AWS.SecretAccessKey = v
	}

	if v := os.Getenv("MailS3Bucket"); v != "" {
		c.Store.Bucket = v
	}
	if v := os.Getenv("MailS3Prefix"); v != "" {
		c.Store.Prefix = v
	}
	c.Store.Prefix = strings.Trim(c.Store.Prefix, "/")

	if v := os.Getenv("MailSender"); v != "" {
		c.Routing.Sender = v
	}
	if v := os.Getenv("MailRecipient"); v != "" {
		c.Routing.Recipient = v
	}

	if v := os.Getenv("RELAY_PROVIDER"); v != "" {
		c.Relay.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SMTP_RELAY_ADDR"); v != "" {
		c.Relay.SMTP.Addr = v
	}
	if v := os.Getenv("SMTP_RELAY_USERNAME"); v != "" {
		c.Relay.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_RELAY_PASSWORD"); v != "" {
		c.Relay.SMTP.Password = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Relay.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Relay.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Relay.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_SENDER"); v != "" {
		c.Relay.Graph.Sender = v
	}

	if os.Getenv("TEST_LARGE_BODY") != "" {
		c.Debug.LargeBody = true
	}
	if os.Getenv("TEST_DEBUG_BODY") != "" {
		c.Debug.LogBody = true
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
