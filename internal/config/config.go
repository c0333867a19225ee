package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "KIOSK_"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQL    = "sql"

	GatewaySandbox  = "sandbox"
	GatewayRazorpay = "razorpay"

	DispenserSimulator = "simulator"
	DispenserAMQP      = "amqp"
)

type Config struct {
	App struct {
		Name            string        `koanf:"name"`
		Env             string        `koanf:"env"`
		HTTPAddr        string        `koanf:"http_addr"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"app"`

	Log struct {
		Level      string `koanf:"level"`
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"log"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
		CORSOrigins  []string      `koanf:"cors_origins"`
		// MaxWebhookBytes caps the raw webhook body read before authentication.
		MaxWebhookBytes int64 `koanf:"max_webhook_bytes"`
	} `koanf:"http"`

	Metrics struct {
		Namespace string `koanf:"namespace"`
	} `koanf:"metrics"`

	Catalog struct {
		Path        string `koanf:"path"`
		Currency    string `koanf:"currency"`
		Exponent    int32  `koanf:"exponent"`
		MaxQuantity int    `koanf:"max_quantity"`
	} `koanf:"catalog"`

	Order struct {
		LinkExpiry     time.Duration `koanf:"link_expiry"`
		GatewayTimeout time.Duration `koanf:"gateway_timeout"`
	} `koanf:"order"`

	Dispense struct {
		Driver   string        `koanf:"driver"`
		PerUnit  time.Duration `koanf:"per_unit"`
		Overhead time.Duration `koanf:"overhead"`
	} `koanf:"dispense"`

	Store struct {
		Driver string `koanf:"driver"`
	} `koanf:"store"`

	Redis struct {
		Addr     string        `koanf:"addr"`
		Password string        `koanf:"password"`
		DB       int           `koanf:"db"`
		Prefix   string        `koanf:"prefix"`
		TTL      time.Duration `koanf:"ttl"`
	} `koanf:"redis"`

	SQL struct {
		Driver          string        `koanf:"driver"`
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		AutoMigrate     bool          `koanf:"auto_migrate"`
	} `koanf:"sql"`

	Payment struct {
		Gateway       string        `koanf:"gateway"`
		BaseURL       string        `koanf:"base_url"`
		KeyID         string        `koanf:"key_id"`
		KeySecret     string        `koanf:"key_secret"`
		WebhookSecret string        `koanf:"webhook_secret"`
		SandboxURL    string        `koanf:"sandbox_url"`
		QRSize        int           `koanf:"qr_size"`
		Timeout       time.Duration `koanf:"timeout"`
	} `koanf:"payment"`

	AMQP struct {
		URL        string        `koanf:"url"`
		Exchange   string        `koanf:"exchange"`
		RoutingKey string        `koanf:"routing_key"`
		TTL        time.Duration `koanf:"ttl"`
	} `koanf:"amqp"`

	Kafka struct {
		Enabled  bool          `koanf:"enabled"`
		Brokers  []string      `koanf:"brokers"`
		Topic    string        `koanf:"topic"`
		ClientID string        `koanf:"client_id"`
		Timeout  time.Duration `koanf:"timeout"`
	} `koanf:"kafka"`

	Outbox struct {
		QueueSize   int `koanf:"queue_size"`
		Concurrency int `koanf:"concurrency"`
	} `koanf:"outbox"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":               "perfume-kiosk",
		"app.env":                "dev",
		"app.http_addr":          ":3001",
		"app.shutdown_timeout":   "10s",
		"log.level":              "info",
		"http.read_timeout":      "10s",
		"http.write_timeout":     "15s",
		"http.idle_timeout":      "60s",
		"http.cors_origins":      []string{"*"},
		"http.max_webhook_bytes": 1 << 20,
		"metrics.namespace":      "kiosk",
		"catalog.currency":       "INR",
		"catalog.exponent":       2,
		"catalog.max_quantity":   10,
		"order.link_expiry":      "5m",
		"order.gateway_timeout":  "10s",
		"dispense.driver":        "simulator",
		"dispense.per_unit":      "500ms",
		"dispense.overhead":      "1s",
		"store.driver":           "memory",
		"redis.prefix":           "kiosk",
		"sql.driver":             "sqlite3",
		"sql.auto_migrate":       true,
		"payment.gateway":        "sandbox",
		"payment.qr_size":        256,
		"payment.timeout":        "10s",
		"kafka.topic":            "kiosk.order-events",
		"outbox.queue_size":      1024,
		"outbox.concurrency":     8,
	}
}

// Load layers defaults, <dir>/base.yaml, <dir>/<env>.yaml and KIOSK_ environment
// variables (KIOSK_PAYMENT__KEY_SECRET -> payment.key_secret), then validates.
// An empty dir skips the files.
func Load(dir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if dir != "" {
		// 2) base
		if err := k.Load(file.Provider(filepath.Join(dir, "base.yaml")), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load base: %w", err)
		}
		// 3) env override (dev/staging/prod). Optional: allow missing for local runs.
		if envName != "" {
			path := filepath.Join(dir, envName+".yaml")
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
					return Config{}, fmt.Errorf("load %s: %w", path, err)
				}
			}
		}
	}

	// 4) environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if envName != "" {
		cfg.App.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields required by the selected drivers.
func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr required"))
	}
	if c.Catalog.MaxQuantity <= 0 {
		errs = append(errs, errors.New("catalog.max_quantity must be positive"))
	}
	if c.Dispense.PerUnit < 0 || c.Dispense.Overhead < 0 {
		errs = append(errs, errors.New("dispense timings must not be negative"))
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr required for store.driver=redis"))
		}
	case StoreSQL:
		if c.SQL.DSN == "" {
			errs = append(errs, errors.New("sql.dsn required for store.driver=sql"))
		}
		if c.SQL.Driver != "mysql" && c.SQL.Driver != "sqlite3" {
			errs = append(errs, fmt.Errorf("sql.driver %q not supported", c.SQL.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q not supported", c.Store.Driver))
	}

	switch c.Payment.Gateway {
	case GatewaySandbox:
	case GatewayRazorpay:
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			errs = append(errs, errors.New("payment.key_id and payment.key_secret required for razorpay"))
		}
	default:
		errs = append(errs, fmt.Errorf("payment.gateway %q not supported", c.Payment.Gateway))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret required"))
	}

	switch c.Dispense.Driver {
	case DispenserSimulator:
	case DispenserAMQP:
		if c.AMQP.URL == "" {
			errs = append(errs, errors.New("amqp.url required for dispense.driver=amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("dispense.driver %q not supported", c.Dispense.Driver))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers required when kafka.enabled"))
	}
	return errors.Join(errs...)
}
