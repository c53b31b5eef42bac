package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendHealthcare = "healthcare"
	BackendPostgres   = "postgres"

	TransportMQTT  = "mqtt"
	TransportRedis = "redis"
	TransportPush  = "push"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	ProjectID        string        `mapstructure:"PROJECT_ID"`
	FHIRStorePath    string        `mapstructure:"FHIR_STORE_PATH"`
	HealthcareAPIURL string        `mapstructure:"HEALTHCARE_API_URL"`
	StoreBackend     string        `mapstructure:"STORE_BACKEND"`
	StoreTimeout     time.Duration `mapstructure:"STORE_TIMEOUT"`
	StoreMaxRetries  int           `mapstructure:"STORE_MAX_RETRIES"`

	AuthMode        string `mapstructure:"AUTH_MODE"`
	CredentialsFile string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	AccessToken     string `mapstructure:"ACCESS_TOKEN"`
	MetadataURL     string `mapstructure:"METADATA_URL"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	Transport     string `mapstructure:"TRANSPORT"`
	TopicID       string `mapstructure:"TOPIC_ID"`
	MQTTBroker    string `mapstructure:"MQTT_BROKER"`
	MQTTClientID  string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUsername  string `mapstructure:"MQTT_USERNAME"`
	MQTTPassword  string `mapstructure:"MQTT_PASSWORD"`
	MQTTQoS       int    `mapstructure:"MQTT_QOS"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisGroup    string `mapstructure:"REDIS_GROUP"`
	RedisConsumer string `mapstructure:"REDIS_CONSUMER"`
	PushEndpoint  string `mapstructure:"PUSH_ENDPOINT"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"PROJECT_ID", "FHIR_STORE_PATH", "HEALTHCARE_API_URL", "STORE_BACKEND", "STORE_TIMEOUT", "STORE_MAX_RETRIES",
	"AUTH_MODE", "GOOGLE_APPLICATION_CREDENTIALS", "ACCESS_TOKEN", "METADATA_URL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"TRANSPORT", "TOPIC_ID", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_QOS",
	"REDIS_URL", "REDIS_GROUP", "REDIS_CONSUMER", "PUSH_ENDPOINT",
	"REQUEST_TIMEOUT", "BODY_LIMIT",
}

// Load reads configuration from the environment, with an optional .env file
// underneath. Role-specific checks are left to ValidateProcessor and
// ValidateSimulator.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HEALTHCARE_API_URL", "https://healthcare.googleapis.com/v1")
	v.SetDefault("STORE_BACKEND", BackendHealthcare)
	v.SetDefault("STORE_TIMEOUT", "30s")
	v.SetDefault("STORE_MAX_RETRIES", 0)
	v.SetDefault("AUTH_MODE", "metadata")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("TRANSPORT", TransportMQTT)
	v.SetDefault("TOPIC_ID", "vitals-ingest-dev")
	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID", "vitals")
	v.SetDefault("MQTT_QOS", 1)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("REDIS_GROUP", "vitals-processor")
	v.SetDefault("REDIS_CONSUMER", "processor-1")
	v.SetDefault("PUSH_ENDPOINT", "http://localhost:8080/")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("BODY_LIMIT", "1M")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	cfg.Transport = strings.ToLower(cfg.Transport)
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// TopicPath is the fully qualified topic name shown in the simulator banner.
func (c *Config) TopicPath() string {
	if c.ProjectID == "" {
		return c.TopicID
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.ProjectID, c.TopicID)
}

// Subscription names the push subscription reported in locally built
// envelopes.
func (c *Config) Subscription() string {
	name := c.TopicID + "-push"
	if c.ProjectID == "" {
		return name
	}
	return fmt.Sprintf("projects/%s/subscriptions/%s", c.ProjectID, name)
}

// ValidateProcessor checks the settings the push processor and the pull
// consumer need.
func (c *Config) ValidateProcessor() error {
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.StoreMaxRetries < 0 {
		return fmt.Errorf("STORE_MAX_RETRIES must not be negative, got %d", c.StoreMaxRetries)
	}

	switch c.StoreBackend {
	case BackendHealthcare:
		if c.FHIRStorePath == "" {
			return fmt.Errorf("FHIR_STORE_PATH is required when STORE_BACKEND is %q", BackendHealthcare)
		}
		if c.HealthcareAPIURL == "" {
			return fmt.Errorf("HEALTHCARE_API_URL is required when STORE_BACKEND is %q", BackendHealthcare)
		}
		return c.validateAuth()
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
		return nil
	}
	return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendHealthcare, BackendPostgres, c.StoreBackend)
}

func (c *Config) validateAuth() error {
	switch c.AuthMode {
	case "metadata":
		return nil
	case "service_account":
		if c.CredentialsFile == "" {
			return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is required when AUTH_MODE is \"service_account\"")
		}
		return nil
	case "static":
		if c.AccessToken == "" {
			return fmt.Errorf("ACCESS_TOKEN is required when AUTH_MODE is \"static\"")
		}
		return nil
	}
	return fmt.Errorf("AUTH_MODE must be \"metadata\", \"service_account\", or \"static\", got %q", c.AuthMode)
}

// ValidateSimulator checks the transport settings used to publish readings.
func (c *Config) ValidateSimulator() error {
	if c.TopicID == "" {
		return fmt.Errorf("TOPIC_ID is required")
	}
	return c.validateTransport(true)
}

// ValidateConsumer checks the transport settings used by the pull consumer.
// Push transport has nothing to pull from.
func (c *Config) ValidateConsumer() error {
	if err := c.validateTransport(false); err != nil {
		return err
	}
	return c.ValidateProcessor()
}

func (c *Config) validateTransport(allowPush bool) error {
	switch c.Transport {
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required when TRANSPORT is %q", TransportMQTT)
		}
		if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
			return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTTQoS)
		}
		return nil
	case TransportRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when TRANSPORT is %q", TransportRedis)
		}
		if !allowPush && (c.RedisGroup == "" || c.RedisConsumer == "") {
			return fmt.Errorf("REDIS_GROUP and REDIS_CONSUMER are required to consume from Redis")
		}
		return nil
	case TransportPush:
		if !allowPush {
			return fmt.Errorf("TRANSPORT %q cannot be consumed; run the push endpoint with serve", TransportPush)
		}
		if c.PushEndpoint == "" {
			return fmt.Errorf("PUSH_ENDPOINT is required when TRANSPORT is %q", TransportPush)
		}
		return nil
	}
	return fmt.Errorf("TRANSPORT must be %q, %q or %q, got %q", TransportMQTT, TransportRedis, TransportPush, c.Transport)
}
