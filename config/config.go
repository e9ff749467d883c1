// Package config loads the server configuration. Sources, highest
// precedence first: flags bound into the viper instance, environment,
// .env files, the config file, defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Ceapa-git/anidle/core"
)

// DefaultLogFile is the file written when file logging is switched on.
const DefaultLogFile = "logs/backend"

// EnvPrefix prefixes every environment variable, e.g. ANIDLE_PORT.
const EnvPrefix = "ANIDLE"

// Config holds all application configuration.
type Config struct {
	Port   int          `mapstructure:"port"`
	Debug  bool         `mapstructure:"debug"`
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Server ServerConfig `mapstructure:"server"`
	// Upstream is the remote daily service consulted on a store miss.
	Upstream UpstreamConfig `mapstructure:"upstream"`

	// ConfigFile is the config file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type StoreConfig struct {
	// Driver is "mongo" or "memory".
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	Workers            int           `mapstructure:"workers"`
	MaxRequestSize     int           `mapstructure:"max_request_size"`
	LegacyLineDecoding bool          `mapstructure:"legacy_line_decoding"`
}

type UpstreamConfig struct {
	// Host is host[:port]; empty disables the upstream.
	Host    string        `mapstructure:"host"`
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// legacyEnv maps keys to the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"mongo.uri":      "MONGO_URI",
	"mongo.database": "MONGO_DB",
	"jwt.issuer":     "JWT_ISSUER",
	"upstream.host":  "MAL_HOST",
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "anidle")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("jwt.issuer", "anidle")
	v.SetDefault("jwt.ttl", 30*time.Minute)
	v.SetDefault("server.read_timeout", time.Duration(0))
	v.SetDefault("server.workers", 0)
	v.SetDefault("server.max_request_size", 64<<10)
	v.SetDefault("server.legacy_line_decoding", false)
	v.SetDefault("upstream.host", "")
	v.SetDefault("upstream.path", "/daily")
	v.SetDefault("upstream.timeout", 5*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		// BindEnv only fails without a key
		_ = v.BindEnv(key, prefixed, env)
	}

	return v
}

// LoadEnvFiles loads .env.local then .env into the process environment.
// Variables already set are never overwritten, so .env.local wins over .env.
// Missing files are skipped.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the optional config file and decodes v into a Config. When
// configFile is empty, anidle.yaml is looked up in the working directory
// and its absence is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("anidle")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	return &cfg, nil
}

// ErrInvalidConfig matches every ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError names the offending key.
type ValidationError struct {
	Key string
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Msg)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < core.MinPort || c.Port > core.MaxPort {
		errs = append(errs, &ValidationError{Key: "port", Msg: fmt.Sprintf("%d not in [%d, %d]", c.Port, core.MinPort, core.MaxPort)})
	}

	switch c.Store.Driver {
	case "memory":
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, &ValidationError{Key: "mongo.uri", Msg: "required (set MONGO_URI)"})
		}
		if c.Mongo.Database == "" {
			errs = append(errs, &ValidationError{Key: "mongo.database", Msg: "required (set MONGO_DB)"})
		}
	default:
		errs = append(errs, &ValidationError{Key: "store.driver", Msg: fmt.Sprintf("unknown driver %q", c.Store.Driver)})
	}

	if c.JWT.Issuer == "" {
		errs = append(errs, &ValidationError{Key: "jwt.issuer", Msg: "required"})
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, &ValidationError{Key: "jwt.ttl", Msg: "must be positive"})
	}
	if c.Server.Workers < 0 {
		errs = append(errs, &ValidationError{Key: "server.workers", Msg: "must not be negative"})
	}
	if c.Server.MaxRequestSize <= 0 {
		errs = append(errs, &ValidationError{Key: "server.max_request_size", Msg: "must be positive"})
	}

	if c.Upstream.Host != "" {
		if !strings.HasPrefix(c.Upstream.Path, "/") {
			errs = append(errs, &ValidationError{Key: "upstream.path", Msg: "must start with /"})
		}
		if c.Upstream.Timeout <= 0 {
			errs = append(errs, &ValidationError{Key: "upstream.timeout", Msg: "must be positive"})
		}
	}

	return errors.Join(errs...)
}
