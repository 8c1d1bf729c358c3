package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/verdant/pkg/config"
	"github.com/abgdnv/verdant/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

// AppName prefixes environment variables (STOREFRONT_*) and names telemetry resources.
const AppName = "storefront"

// Cart store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNATS     = "nats"
)

type Config struct {
	HTTPServer   config.HTTPConfig       `koanf:"server"`
	GRPC         config.GrpcServerConfig `koanf:"grpc"`
	Log          config.LogConfig        `koanf:"log"`
	PProf        config.PProfConfig      `koanf:"pprof"`
	Shutdown     config.ShutdownConfig   `koanf:"shutdown"`
	Probes       config.ProbesConfig     `koanf:"probes"`
	Telemetry    config.TelemetryConfig  `koanf:"telemetry"`
	Database     config.DatabaseConfig   `koanf:"database"`
	NATS         config.NATSConfig       `koanf:"nats"`
	Catalog      CatalogConfig           `koanf:"catalog"`
	Cart         CartConfig              `koanf:"cart"`
	Checkout     CheckoutConfig          `koanf:"checkout"`
	Notification config.SubscriberConfig `koanf:"notification"`
}

// CatalogConfig selects the catalog source. An empty file means the embedded catalog.
type CatalogConfig struct {
	File        string        `koanf:"file"`
	Watch       bool          `koanf:"watch"`
	ReloadDelay time.Duration `koanf:"reloaddelay"`
}

type CartConfig struct {
	BaseKey     string          `koanf:"basekey"`
	MaxSessions int             `koanf:"maxsessions"`
	Store       CartStoreConfig `koanf:"store"`
}

type CartStoreConfig struct {
	Driver     string        `koanf:"driver"`
	Dir        string        `koanf:"dir"`
	SQLitePath string        `koanf:"sqlitepath"`
	Bucket     string        `koanf:"bucket"`
	Timeout    time.Duration `koanf:"timeout"`
	Breaker    BreakerConfig `koanf:"breaker"`
}

// BreakerConfig guards a remote cart store with a circuit breaker.
type BreakerConfig struct {
	Enabled                     bool `koanf:"enabled"`
	config.CircuitBreakerConfig `koanf:",squash"`
}

type CheckoutConfig struct {
	Delay   time.Duration `koanf:"delay"`
	Stream  string        `koanf:"stream"`
	Subject string        `koanf:"subject"`
}

// Defaults returns the configuration used for every key the file and environment leave unset.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":                            8080,
		"server.maxHeaderBytes":                  1 << 20,
		"server.timeout.read":                    "5s",
		"server.timeout.write":                   "10s",
		"server.timeout.idle":                    "60s",
		"server.timeout.readHeader":              "2s",
		"grpc.port":                              "9090",
		"log.level":                              "info",
		"pprof.addr":                             "localhost:6060",
		"shutdown.timeout":                       "15s",
		"database.timeout":                       "5s",
		"database.migrate":                       true,
		"nats.timeout":                           "5s",
		"cart.basekey":                           "sustainable-fashion-cart",
		"cart.maxsessions":                       10000,
		"cart.store.driver":                      DriverMemory,
		"cart.store.dir":                         "data/carts",
		"cart.store.sqlitepath":                  "data/carts.db",
		"cart.store.bucket":                      "carts",
		"cart.store.timeout":                     "2s",
		"cart.store.breaker.name":                "cart-store-cb",
		"cart.store.breaker.consecutivefailures": 5,
		"cart.store.breaker.errorratepercent":    60,
		"cart.store.breaker.opentimeout":         "10s",
		"catalog.reloaddelay":                    "200ms",
		"checkout.delay":                         "2s",
		"checkout.stream":                        "CHECKOUTS",
		"checkout.subject":                       "storefront.checkouts.completed",
		"notification.stream":                    "CHECKOUTS",
		"notification.subject":                   "storefront.checkouts.completed",
		"notification.consumer":                  "order-confirmations",
		"notification.timeout":                   "5s",
		"notification.interval":                  "1s",
		"notification.workers":                   2,
	}
}

// Load reads the storefront configuration from defaults, config file, .env and environment.
func Load() (*Config, error) {
	return configloader.LoadWithOptions[*Config](AppName, configloader.Options{Defaults: Defaults()})
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	b.WriteString(c.Probes.String())
	b.WriteString(c.Telemetry.String())
	if c.Cart.Store.Driver == DriverPostgres {
		b.WriteString(c.Database.String())
	}
	b.WriteString(c.NATS.String())

	b.WriteString("\n--- Catalog ---\n")
	file := c.Catalog.File
	if file == "" {
		file = "<embedded>"
	}
	b.WriteString(fmt.Sprintf("  catalog.file: %s\n", file))
	b.WriteString(fmt.Sprintf("  catalog.watch: %t\n", c.Catalog.Watch))
	b.WriteString(fmt.Sprintf("  catalog.reloaddelay: %s\n", c.Catalog.ReloadDelay))

	b.WriteString("\n--- Cart ---\n")
	b.WriteString(fmt.Sprintf("  cart.basekey: %s\n", c.Cart.BaseKey))
	b.WriteString(fmt.Sprintf("  cart.maxsessions: %d\n", c.Cart.MaxSessions))
	b.WriteString(fmt.Sprintf("  cart.store.driver: %s\n", c.Cart.Store.Driver))
	switch c.Cart.Store.Driver {
	case DriverFile:
		b.WriteString(fmt.Sprintf("  cart.store.dir: %s\n", c.Cart.Store.Dir))
	case DriverSQLite:
		b.WriteString(fmt.Sprintf("  cart.store.sqlitepath: %s\n", c.Cart.Store.SQLitePath))
	case DriverNATS:
		b.WriteString(fmt.Sprintf("  cart.store.bucket: %s\n", c.Cart.Store.Bucket))
	}
	b.WriteString(fmt.Sprintf("  cart.store.timeout: %s\n", c.Cart.Store.Timeout))
	b.WriteString(fmt.Sprintf("  cart.store.breaker.enabled: %t\n", c.Cart.Store.Breaker.Enabled))

	b.WriteString("\n--- Checkout ---\n")
	b.WriteString(fmt.Sprintf("  checkout.delay: %s\n", c.Checkout.Delay))
	b.WriteString(fmt.Sprintf("  checkout.stream: %s\n", c.Checkout.Stream))
	b.WriteString(fmt.Sprintf("  checkout.subject: %s\n", c.Checkout.Subject))

	b.WriteString(c.Notification.String())
	return b.String()
}

// Validate checks every section; sections that depend on an optional
// backend are only checked when that backend is selected.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.HTTPServer, &c.GRPC, &c.Log, &c.PProf, &c.Shutdown, &c.Probes, &c.Telemetry, &c.NATS,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if err := c.Cart.validate(c); err != nil {
		return err
	}
	if c.Checkout.Delay < 0 {
		return fmt.Errorf("checkout delay must not be negative")
	}
	if c.NATS.Enabled() && (c.Checkout.Stream == "" || c.Checkout.Subject == "") {
		return fmt.Errorf("checkout stream and subject are required when NATS is configured")
	}
	if c.Notification.Enabled && !c.NATS.Enabled() {
		return fmt.Errorf("notification consumer requires nats.url")
	}
	if err := c.Notification.Validate(); err != nil {
		return err
	}
	if c.Catalog.Watch && c.Catalog.File == "" {
		return fmt.Errorf("catalog.watch requires catalog.file")
	}
	return nil
}

func (cc *CartConfig) validate(c *Config) error {
	if cc.BaseKey == "" {
		return fmt.Errorf("cart.basekey is not configured")
	}
	s := cc.Store
	switch s.Driver {
	case DriverMemory:
	case DriverFile:
		if s.Dir == "" {
			return fmt.Errorf("cart.store.dir is required for the file driver")
		}
	case DriverSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("cart.store.sqlitepath is required for the sqlite driver")
		}
	case DriverPostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	case DriverNATS:
		if !c.NATS.Enabled() {
			return fmt.Errorf("the nats cart store requires nats.url")
		}
		if s.Bucket == "" {
			return fmt.Errorf("cart.store.bucket is required for the nats driver")
		}
	default:
		return fmt.Errorf("unknown cart store driver %q", s.Driver)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("cart.store.timeout must be greater than 0")
	}
	if s.Breaker.Enabled {
		if err := s.Breaker.Validate(); err != nil {
			return err
		}
	}
	return nil
}
