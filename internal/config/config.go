package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Media     MediaConfig     `yaml:"media"`
	Inference InferenceConfig `yaml:"inference"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Notify    NotifyConfig    `yaml:"notify"`
	Web       WebConfig       `yaml:"web"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level" env:"ARGUS_LOG_LEVEL"`
	Format string `yaml:"format" env:"ARGUS_LOG_FORMAT"`
	Output string `yaml:"output" env:"ARGUS_LOG_OUTPUT"`
}

// StoreConfig contains persistence configuration
type StoreConfig struct {
	DataDir string `yaml:"data_dir" env:"ARGUS_DATA_DIR"`
}

// SchedulerConfig contains task scheduler configuration
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" env:"ARGUS_SCHEDULER_TICK"`
	Platform     string        `yaml:"platform" env:"ARGUS_PLATFORM"`
	ModelDir     string        `yaml:"model_dir" env:"ARGUS_MODEL_DIR"`
}

// PlatformMatches reports whether a model built for the given platform
// can run on this node. An empty node platform accepts everything.
func (s SchedulerConfig) PlatformMatches(platform string) bool {
	return s.Platform == "" || s.Platform == platform
}

// MediaConfig contains frame source configuration
type MediaConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	ReadInterval   time.Duration `yaml:"read_interval"`
}

// InferenceConfig contains inference engine configuration
type InferenceConfig struct {
	InputWidth   int     `yaml:"input_width"`
	InputHeight  int     `yaml:"input_height"`
	NMSThreshold float64 `yaml:"nms_threshold"`
}

// AlertsConfig contains alert image storage configuration
type AlertsConfig struct {
	ImageDir    string   `yaml:"image_dir" env:"ARGUS_ALERT_IMAGE_DIR"`
	JPEGQuality int      `yaml:"jpeg_quality"`
	S3          S3Config `yaml:"s3"`
}

// S3Config contains optional object-storage upload configuration
type S3Config struct {
	Enabled   bool   `yaml:"enabled" env:"ARGUS_S3_ENABLED"`
	Endpoint  string `yaml:"endpoint" env:"ARGUS_S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ARGUS_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"ARGUS_S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"ARGUS_S3_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"ARGUS_S3_USE_SSL"`
}

// NotifyConfig contains notification sink configuration
type NotifyConfig struct {
	Sinks          []SinkConfig `yaml:"sinks"`
	MaxConcurrency int          `yaml:"max_concurrency"`
}

// Notification sink types.
const (
	SinkWebhook = "webhook"
	SinkMQTT    = "mqtt"
	SinkKafka   = "kafka"
)

// SinkConfig describes a single notification sink
type SinkConfig struct {
	Type     string        `yaml:"type"` // webhook | mqtt | kafka
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	Broker   string        `yaml:"broker"`
	Brokers  []string      `yaml:"brokers"`
	Topic    string        `yaml:"topic"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	ClientID string        `yaml:"client_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WebConfig contains web server configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled" env:"ARGUS_WEB_ENABLED"`
	Host    string `yaml:"host" env:"ARGUS_WEB_HOST"`
	Port    int    `yaml:"port" env:"ARGUS_WEB_PORT"`
}

// Load reads the YAML configuration file and applies environment overrides.
// Environment variables win over file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Store.DataDir = "./data"
	c.Scheduler.TickInterval = 30 * time.Second
	c.Scheduler.Platform = "cpu_x86"
	c.Scheduler.ModelDir = "./models"
	c.Media.ReconnectDelay = 5 * time.Second
	c.Media.MaxReconnects = 10
	c.Media.ReadInterval = 30 * time.Millisecond
	c.Inference.InputWidth = 640
	c.Inference.InputHeight = 640
	c.Inference.NMSThreshold = 0.45
	c.Alerts.ImageDir = "./data/alerts"
	c.Alerts.JPEGQuality = 85
	c.Notify.MaxConcurrency = 4
	c.Web.Enabled = true
	c.Web.Host = "0.0.0.0"
	c.Web.Port = 8080
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler tick_interval must be positive")
	}
	if c.Media.MaxReconnects <= 0 {
		return fmt.Errorf("media max_reconnects must be positive")
	}
	if c.Inference.NMSThreshold <= 0 || c.Inference.NMSThreshold >= 1 {
		return fmt.Errorf("inference nms_threshold must be in (0, 1)")
	}
	if c.Alerts.JPEGQuality < 1 || c.Alerts.JPEGQuality > 100 {
		return fmt.Errorf("alerts jpeg_quality must be in [1, 100]")
	}
	for i, sink := range c.Notify.Sinks {
		switch sink.Type {
		case SinkWebhook:
			if sink.URL == "" {
				return fmt.Errorf("sink %d: webhook sink requires url", i)
			}
		case SinkMQTT:
			if sink.Broker == "" || sink.Topic == "" {
				return fmt.Errorf("sink %d: mqtt sink requires broker and topic", i)
			}
		case SinkKafka:
			if len(sink.Brokers) == 0 || sink.Topic == "" {
				return fmt.Errorf("sink %d: kafka sink requires brokers and topic", i)
			}
		default:
			return fmt.Errorf("sink %d: unknown sink type %q", i, sink.Type)
		}
	}
	return nil
}
