package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// KafkaConfig describes the Kafka link between this worker and its masters.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	DispatchTopic  string   `yaml:"dispatchTopic"`
	StatusTopic    string   `yaml:"statusTopic"`
	AlertTopic     string   `yaml:"alertTopic"`
	HeartbeatTopic string   `yaml:"heartbeatTopic"`
	GroupID        string   `yaml:"groupId"`
}

// RetryConfig bounds the at-least-once delivery loop for status messages.
type RetryConfig struct {
	MaxAttempts     int      `yaml:"maxAttempts"`
	InitialInterval Duration `yaml:"initialInterval"`
	MaxInterval     Duration `yaml:"maxInterval"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the full worker configuration. All knobs the runtime consults
// live here and are passed down explicitly at construction; there are no
// ambient globals.
type Config struct {
	NodeID        string `yaml:"nodeId"`
	MasterAddress string `yaml:"masterAddress"`

	Kafka KafkaConfig `yaml:"kafka"`
	Retry RetryConfig `yaml:"retry"`
	Log   LogConfig   `yaml:"log"`

	// ExecThreads is the number of worker pool slots.
	ExecThreads int `yaml:"execThreads"`

	SystemEnvPath         string `yaml:"systemEnvPath"`
	DevelopMode           bool   `yaml:"developMode"`
	ResourceUploadEnabled bool   `yaml:"resourceUploadEnabled"`
	ResourceStorePath     string `yaml:"resourceStorePath"`

	HeartbeatInterval Duration `yaml:"heartbeatInterval"`

	MetricsAddr string `yaml:"metricsAddr"`
	HealthAddr  string `yaml:"healthAddr"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		MasterAddress: "localhost:5678",
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			DispatchTopic:  "skein.task.dispatch",
			StatusTopic:    "skein.task.status",
			AlertTopic:     "skein.alert",
			HeartbeatTopic: "skein.worker.heartbeat",
			GroupID:        "skein-worker",
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: Duration(time.Second),
			MaxInterval:     Duration(10 * time.Second),
		},
		Log:               LogConfig{Level: "info", JSON: true},
		ExecThreads:       16,
		SystemEnvPath:     "/etc/profile",
		HeartbeatInterval: Duration(10 * time.Second),
		MetricsAddr:       ":9273",
		HealthAddr:        ":5679",
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the runtime relies on.
func (c *Config) Validate() error {
	if c.ExecThreads <= 0 {
		return fmt.Errorf("execThreads must be positive, got %d", c.ExecThreads)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.maxAttempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialInterval <= 0 {
		return fmt.Errorf("retry.initialInterval must be positive")
	}
	return nil
}
