// Package config loads server settings from an optional YAML file, a .env
// file and ONERPC_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g.
// ONERPC_SERVER_PORT overrides server.port.
const EnvPrefix = "ONERPC"

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	CORS   CORSConfig   `mapstructure:"cors" yaml:"cors"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	// Transport is "http", "socket" or "websocket".
	Transport    string        `mapstructure:"transport" yaml:"transport"`
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Path         string        `mapstructure:"path" yaml:"path"`
	Concurrent   bool          `mapstructure:"concurrent" yaml:"concurrent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// Codec is "json" or "cbor". The socket transport speaks only this codec;
	// over HTTP, cbor is accepted next to json and picked by Content-Type.
	Codec string `mapstructure:"codec" yaml:"codec"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

var (
	transports = []string{"http", "socket", "websocket"}
	codecs     = []string{"json", "cbor"}
	formats    = []string{"text", "json"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "http")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.path", "/rpc")
	v.SetDefault("server.concurrent", false)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.codec", "json")
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. path names a YAML file and may be empty, in
// which case only defaults and the environment are used. A .env file in the
// working directory is loaded first, if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings and ranges.
func (c *Config) Validate() error {
	if !slices.Contains(transports, c.Server.Transport) {
		return fmt.Errorf("invalid server.transport: %q (must be one of %s)", c.Server.Transport, strings.Join(transports, ", "))
	}
	if !slices.Contains(codecs, c.Server.Codec) {
		return fmt.Errorf("invalid server.codec: %q (must be one of %s)", c.Server.Codec, strings.Join(codecs, ", "))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid server.max_body_bytes: %d", c.Server.MaxBodyBytes)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if !slices.Contains(formats, c.Log.Format) {
		return fmt.Errorf("invalid log.format: %q (must be text or json)", c.Log.Format)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log.level: %q", s)
	}
	return level, nil
}

// NewLogger builds a logger writing to stderr in the configured format.
func NewLogger(c LogConfig) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
