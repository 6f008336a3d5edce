// Package setup loads adapter configuration and orchestrates the ordered
// first-time registration of a webhook environment.
package setup

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
)

const (
	ConsumerKeyKey       = "TWITTER_CONSUMER_KEY"
	ConsumerSecretKey    = "TWITTER_CONSUMER_SECRET"
	AccessTokenKey       = "TWITTER_ACCESS_TOKEN"
	AccessTokenSecretKey = "TWITTER_ACCESS_TOKEN_SECRET"
	WebhookEnvKey        = "TWITTER_WEBHOOK_ENV"
	WebhookURLKey        = "TWITTER_WEBHOOK_URL"
	ServerAddrKey        = "ADAPTER_SERVER_ADDR"
	WebhookPathKey       = "ADAPTER_WEBHOOK_PATH"
	MetricsAddrKey       = "ADAPTER_METRICS_ADDR"
)

// Config is the adapter's full configuration surface. YAML tags support
// file-based config; environment variables override file values.
type Config struct {
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`

	// Environment is the Account Activity environment name.
	Environment string `yaml:"environment"`
	// WebhookURL is the public https URL Twitter delivers events to.
	WebhookURL string `yaml:"webhook_url"`

	ServerAddr  string `yaml:"server_addr"`
	WebhookPath string `yaml:"webhook_path"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Credentials bundles the OAuth1 material out of the config.
func (c *Config) Credentials() twitter.Credentials {
	return twitter.Credentials{
		ConsumerKey:       c.ConsumerKey,
		ConsumerSecret:    c.ConsumerSecret,
		AccessToken:       c.AccessToken,
		AccessTokenSecret: c.AccessTokenSecret,
	}
}

// Validate checks that the fields every binary needs are present.
func (c *Config) Validate() error {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return twitter.ErrMissingAppCredentials
	}
	if c.AccessToken == "" || c.AccessTokenSecret == "" {
		return twitter.ErrMissingAccessCredentials
	}
	if c.Environment == "" {
		return fmt.Errorf("%w: missing webhook environment name", twitter.ErrInvalidConfig)
	}
	return nil
}

// Load builds the configuration: a .env file if present, then the optional
// YAML file at path, then environment variables on top.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	config := &Config{
		ServerAddr:  ":3000",
		WebhookPath: "/webhook",
		MetricsAddr: ":8080",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	overrideFromEnv(&config.ConsumerKey, ConsumerKeyKey)
	overrideFromEnv(&config.ConsumerSecret, ConsumerSecretKey)
	overrideFromEnv(&config.AccessToken, AccessTokenKey)
	overrideFromEnv(&config.AccessTokenSecret, AccessTokenSecretKey)
	overrideFromEnv(&config.Environment, WebhookEnvKey)
	overrideFromEnv(&config.WebhookURL, WebhookURLKey)
	overrideFromEnv(&config.ServerAddr, ServerAddrKey)
	overrideFromEnv(&config.WebhookPath, WebhookPathKey)
	overrideFromEnv(&config.MetricsAddr, MetricsAddrKey)
}

func overrideFromEnv(field *string, key string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	*field = value
}
