// Package config provides configuration for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrDBUriNotSetInProduction is returned when DB_URI is not set in production. We need this to prevent accidental
	// production deployments against a throwaway SQLite file.
	ErrDBUriNotSetInProduction = errors.New("DB_URI must be set in production")
	// ErrRedisAddrNotSet is returned when the redis store driver is selected without an address.
	ErrRedisAddrNotSet = errors.New("REDIS_ADDR must be set when STORE_DRIVER is redis")
	// ErrUnsupportedStoreDriver is returned for store drivers other than sqlite and redis.
	ErrUnsupportedStoreDriver = errors.New("unsupported store driver")
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverRedis  = "redis"
)

const (
	// AppEnvironmentDefault is the default application environment.
	AppEnvironmentDefault = "development"
	// HostDefault is the default host to listen on. Can be an IP address or hostname.
	HostDefault = "localhost"
	// PortDefault is the default port to listen on.
	PortDefault = "5000"
	// LogLevelDefault is the default minimum log level.
	LogLevelDefault = "info"

	// StoreDriverDefault is the default document store.
	StoreDriverDefault = StoreDriverSQLite

	// DBURIDefault is the default database URI. Default is quizdocs.sqlite in the current directory.
	DBURIDefault = "file:quizdocs.sqlite?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	// DBMaxOpenConnsDefault is the default maximum number of open database connections.
	DBMaxOpenConnsDefault = 10
	// DBMaxIdleConnsDefault is the default maximum number of idle database connections.
	DBMaxIdleConnsDefault = 10
	// DBConnMaxLifetimeDefault is the default maximum lifetime of a database connection.
	DBConnMaxLifetimeDefault = 5 * time.Minute

	// RedisDBDefault is the default Redis logical database.
	RedisDBDefault = 0
)

// Config represents the application configuration.
type Config struct {
	AppEnvironment string

	Host     string
	Port     string
	LogLevel string

	StoreDriver string

	DBURI             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// IsProduction reports whether the application runs in production.
func (c *Config) IsProduction() bool {
	return c.AppEnvironment == "production"
}

// fileConfig is the YAML layout of a config file. Every value is optional.
type fileConfig struct {
	AppEnv string `yaml:"app_env"`
	Server struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	SQLite struct {
		URI             string `yaml:"uri"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"sqlite"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Parse parses environment variables into the config.
// If CONFIG_PATH is set, the YAML file it points to is read first and environment variables override its values.
func Parse(getenv func(string) string) (*Config, error) {
	c := Config{
		AppEnvironment:    AppEnvironmentDefault,
		Host:              HostDefault,
		Port:              PortDefault,
		LogLevel:          LogLevelDefault,
		StoreDriver:       StoreDriverDefault,
		DBURI:             DBURIDefault,
		DBMaxOpenConns:    DBMaxOpenConnsDefault,
		DBMaxIdleConns:    DBMaxIdleConnsDefault,
		DBConnMaxLifetime: DBConnMaxLifetimeDefault,
		RedisDB:           RedisDBDefault,
	}

	if path := getenv("CONFIG_PATH"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Overwrite defaults with environment variables.
	if val := getenv("APP_ENV"); val != "" {
		c.AppEnvironment = val
	}
	if val := getenv("HOST"); val != "" {
		c.Host = val
	}
	if val := getenv("PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := getenv("STORE_DRIVER"); val != "" {
		c.StoreDriver = val
	}
	if val := getenv("DB_URI"); val != "" {
		c.DBURI = val
	}
	if val := getenv("REDIS_ADDR"); val != "" {
		c.RedisAddr = val
	}
	if val := getenv("REDIS_PASSWORD"); val != "" {
		c.RedisPassword = val
	}

	// Strict validation for types
	if val := getenv("DB_MAX_OPEN_CONNS"); val != "" {
		var err error
		c.DBMaxOpenConns, err = strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %q, err: %w", val, err)
		}
	}

	if val := getenv("DB_MAX_IDLE_CONNS"); val != "" {
		var err error
		c.DBMaxIdleConns, err = strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %q, err: %w", val, err)
		}
	}

	if val := getenv("DB_CONN_MAX_LIFETIME"); val != "" {
		var err error
		c.DBConnMaxLifetime, err = time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %q, err: %w", val, err)
		}
	}

	if val := getenv("REDIS_DB"); val != "" {
		var err error
		c.RedisDB, err = strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %q, err: %w", val, err)
		}
	}

	// Mandatory fields
	switch c.StoreDriver {
	case StoreDriverSQLite:
		if c.IsProduction() && c.DBURI == DBURIDefault {
			return nil, ErrDBUriNotSetInProduction
		}
	case StoreDriverRedis:
		if c.RedisAddr == "" {
			return nil, ErrRedisAddrNotSet
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStoreDriver, c.StoreDriver)
	}

	return &c, nil
}

// loadFile applies the non-zero values of a YAML config file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}

	var fc fileConfig
	if err = yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("error parsing config file %q: %w", path, err)
	}

	setString(&c.AppEnvironment, fc.AppEnv)
	setString(&c.Host, fc.Server.Host)
	setString(&c.Port, fc.Server.Port)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.StoreDriver, fc.Store.Driver)
	setString(&c.DBURI, fc.SQLite.URI)
	setString(&c.RedisAddr, fc.Redis.Addr)
	setString(&c.RedisPassword, fc.Redis.Password)

	if fc.SQLite.MaxOpenConns > 0 {
		c.DBMaxOpenConns = fc.SQLite.MaxOpenConns
	}
	if fc.SQLite.MaxIdleConns > 0 {
		c.DBMaxIdleConns = fc.SQLite.MaxIdleConns
	}
	if fc.SQLite.ConnMaxLifetime != "" {
		c.DBConnMaxLifetime, err = time.ParseDuration(fc.SQLite.ConnMaxLifetime)
		if err != nil {
			return fmt.Errorf("invalid sqlite.conn_max_lifetime: %q, err: %w", fc.SQLite.ConnMaxLifetime, err)
		}
	}
	if fc.Redis.DB > 0 {
		c.RedisDB = fc.Redis.DB
	}

	return nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}
