package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Audit    EndpointConfig `yaml:"audit"`
	EventBus EndpointConfig `yaml:"event_bus"`
	Otel     OtelConfig     `yaml:"otel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type GRPCConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// SinkURL ships log entries to the metric service when set.
	SinkURL    string `yaml:"sink_url"`
	SinkAPIKey string `yaml:"sink_api_key"`
	SinkSource string `yaml:"sink_source"`
	// SinkLevel is the minimum level shipped; defaults to info.
	SinkLevel string `yaml:"sink_level"`
}

type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type WorkflowConfig struct {
	// TemplatesPath replaces the built-in catalog with a YAML file.
	TemplatesPath string `yaml:"templates_path"`
	// Idempotency is "check" or "upsert".
	Idempotency    string `yaml:"idempotency"`
	ActivePageSize int    `yaml:"active_page_size"`
	Concurrency    int    `yaml:"concurrency"`
}

type EndpointConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type OtelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

const (
	IdempotencyCheck  = "check"
	IdempotencyUpsert = "upsert"
)

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8100,
		},
		GRPC: GRPCConfig{
			Host: "0.0.0.0",
			Port: 9114,
		},
		Log: LogConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Workflow: WorkflowConfig{
			Idempotency:    IdempotencyCheck,
			ActivePageSize: 200,
			Concurrency:    4,
		},
		Audit: EndpointConfig{
			Timeout: "5s",
		},
		EventBus: EndpointConfig{
			Timeout: "5s",
		},
		Otel: OtelConfig{
			Endpoint: "otel-collector:4317",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("APP_HTTP_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_HTTP_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("APP_GRPC_HOST")); v != "" {
		cfg.GRPC.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_GRPC_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.GRPC.Port = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("METRIC_SERVICE_BASE_URL")); v != "" {
		cfg.Log.SinkURL = v
	}
	if v := strings.TrimSpace(os.Getenv("METRIC_SERVICE_API_KEY")); v != "" {
		cfg.Log.SinkAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("METRIC_SERVICE_SOURCE")); v != "" {
		cfg.Log.SinkSource = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_STORE_DRIVER")); v != "" {
		cfg.Store.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_STORE_DSN")); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_WORKFLOW_TEMPLATES_PATH")); v != "" {
		cfg.Workflow.TemplatesPath = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_WORKFLOW_IDEMPOTENCY")); v != "" {
		cfg.Workflow.Idempotency = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_AUDIT_URL")); v != "" {
		cfg.Audit.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_EVENT_BUS_URL")); v != "" {
		cfg.EventBus.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Otel.Endpoint = v
		cfg.Otel.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	default:
		return errors.New("store.driver must be memory or postgres")
	}
	switch c.Workflow.Idempotency {
	case IdempotencyCheck, IdempotencyUpsert:
	default:
		return errors.New("workflow.idempotency must be check or upsert")
	}
	return nil
}

func Module(path string) fx.Option {
	return fx.Provide(func() (Config, error) {
		return Load(path)
	})
}
