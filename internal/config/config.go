package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"

	BackendHTTP  = "http"
	BackendColly = "colly"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type DBConfig struct {
	Driver     string `yaml:"driver" envconfig:"DB_DRIVER"`
	Connection string `yaml:"connection" envconfig:"MONGO_URI"`
	Database   string `yaml:"database" envconfig:"MONGO_DATABASE"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	Collections struct {
		Pages string `yaml:"pages" envconfig:"MONGO_PAGES_COLLECTION"`
	} `yaml:"collections"`
}

type LogicConfig struct {
	TimeoutSec           int `yaml:"timeout_sec" envconfig:"HTTP_TIMEOUT_SECONDS"`
	MaxConcurrentWorkers int `yaml:"max_concurrent_workers" envconfig:"MAX_CONCURRENT_WORKERS"`
	MaxRedirects         int `yaml:"max_redirects" envconfig:"MAX_REDIRECTS"`
}

type FetcherConfig struct {
	Backend   string `yaml:"backend" envconfig:"FETCHER_BACKEND"`
	UserAgent string `yaml:"user_agent" envconfig:"USER_AGENT"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"SERVER_ADDR"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

type SpiderConfig struct {
	DB      DBConfig      `yaml:"db"`
	Logic   LogicConfig   `yaml:"logic"`
	Fetcher FetcherConfig `yaml:"fetcher"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns a configuration that runs against a local MongoDB.
func Default() *SpiderConfig {
	cfg := &SpiderConfig{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the YAML file at path (a missing file is not an error),
// applies environment overrides and fills in defaults.
func LoadConfig(path string) (*SpiderConfig, error) {
	_ = godotenv.Load(".env")

	var cfg SpiderConfig

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *SpiderConfig) applyDefaults() {
	if c.DB.Driver == "" {
		c.DB.Driver = DriverMongo
	}
	if c.DB.Connection == "" {
		c.DB.Connection = "mongodb://localhost:27017"
	}
	if c.DB.Database == "" {
		c.DB.Database = "depth_spider"
	}
	if c.DB.Collections.Pages == "" {
		c.DB.Collections.Pages = "pages"
	}
	if c.DB.SQLitePath == "" {
		c.DB.SQLitePath = "depth_spider.db"
	}
	if c.Logic.TimeoutSec == 0 {
		c.Logic.TimeoutSec = 2
	}
	if c.Logic.MaxConcurrentWorkers == 0 {
		c.Logic.MaxConcurrentWorkers = 4
	}
	if c.Logic.MaxRedirects == 0 {
		c.Logic.MaxRedirects = 15
	}
	if c.Fetcher.Backend == "" {
		c.Fetcher.Backend = BackendHTTP
	}
	if c.Fetcher.UserAgent == "" {
		c.Fetcher.UserAgent = "Mozilla/5.0 (compatible; DepthSpider/1.0)"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Timeout is the per-fetch deadline.
func (c *SpiderConfig) Timeout() time.Duration {
	return time.Duration(c.Logic.TimeoutSec) * time.Second
}

func (c *SpiderConfig) Validate() error {
	var err error

	switch c.DB.Driver {
	case DriverMongo:
		if c.DB.Connection == "" {
			err = multierror.Append(err, fmt.Errorf("%w: db.connection is required for the mongo driver", ErrInvalidConfig))
		}
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			err = multierror.Append(err, fmt.Errorf("%w: db.sqlite_path is required for the sqlite driver", ErrInvalidConfig))
		}
	case DriverMemory:
	default:
		err = multierror.Append(err, fmt.Errorf("%w: unknown db.driver %q", ErrInvalidConfig, c.DB.Driver))
	}

	switch c.Fetcher.Backend {
	case BackendHTTP, BackendColly:
	default:
		err = multierror.Append(err, fmt.Errorf("%w: unknown fetcher.backend %q", ErrInvalidConfig, c.Fetcher.Backend))
	}

	if c.Logic.TimeoutSec < 0 {
		err = multierror.Append(err, fmt.Errorf("%w: logic.timeout_sec must not be negative", ErrInvalidConfig))
	}
	if c.Logic.MaxConcurrentWorkers < 0 {
		err = multierror.Append(err, fmt.Errorf("%w: logic.max_concurrent_workers must not be negative", ErrInvalidConfig))
	}
	if c.Logic.MaxRedirects < 0 {
		err = multierror.Append(err, fmt.Errorf("%w: logic.max_redirects must not be negative", ErrInvalidConfig))
	}

	return err
}
