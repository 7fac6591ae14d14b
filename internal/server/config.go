package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the HTTP server settings from the "server" section.
type Config struct {
	Host              string               `mapstructure:"host"`
	Port              int                  `mapstructure:"port"`
	DevMode           bool                 `mapstructure:"dev_mode"` // Serves Swagger UI
	ReadHeaderTimeout time.Duration        `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration        `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration        `mapstructure:"shutdown_timeout"`
	Detection         DetectionLimitConfig `mapstructure:"detection"`
}

// DetectionLimitConfig bounds the routes that run the solver. Other routes
// are not limited.
type DetectionLimitConfig struct {
	RPS         float64 `mapstructure:"rps"`           // Per client; 0 disables the rate limit
	Burst       int     `mapstructure:"burst"`         // Per client
	MaxInFlight int     `mapstructure:"max_in_flight"` // Concurrent runs; 0 means one per CPU
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		Detection:         DetectionLimitConfig{RPS: 2, Burst: 10},
	}
}

// LoadConfig reads configuration from an optional file and CAPA_*
// environment variables (CAPA_SERVER_PORT=9090) on top of the defaults.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("capa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/capa")
	}

	v.SetEnvPrefix("CAPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.dev_mode", d.DevMode)
	v.SetDefault("server.read_header_timeout", d.ReadHeaderTimeout)
	v.SetDefault("server.idle_timeout", d.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("server.detection.rps", d.Detection.RPS)
	v.SetDefault("server.detection.burst", d.Detection.Burst)
	v.SetDefault("server.detection.max_in_flight", d.Detection.MaxInFlight)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("plugins.capa.min_length", 2)
	v.SetDefault("plugins.capa.max_length", 100)
	v.SetDefault("plugins.capa.threshold", 4.685)
	v.SetDefault("plugins.capa.tolerance", 1e-8)
	v.SetDefault("plugins.capa.max_iterations", 1000)
	v.SetDefault("plugins.capa.transform", "none")
	v.SetDefault("plugins.capa.max_series_length", 20_000)
	v.SetDefault("plugins.capa.max_body_bytes", 8<<20)
	v.SetDefault("plugins.capa.timeout", "30s")
	v.SetDefault("plugins.capa.step_budget", 0)

	v.SetDefault("plugins.ws.send_buffer", 256)
	v.SetDefault("plugins.ws.write_timeout", "5s")
	v.SetDefault("plugins.ws.max_message_size", 8<<20)
}

// UnmarshalConfig reads the "server" section. Keys are read one by one so
// CAPA_SERVER_* environment overrides apply.
func UnmarshalConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Host:              v.GetString("server.host"),
		Port:              v.GetInt("server.port"),
		DevMode:           v.GetBool("server.dev_mode"),
		ReadHeaderTimeout: v.GetDuration("server.read_header_timeout"),
		IdleTimeout:       v.GetDuration("server.idle_timeout"),
		ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),
		Detection: DetectionLimitConfig{
			RPS:         v.GetFloat64("server.detection.rps"),
			Burst:       v.GetInt("server.detection.burst"),
			MaxInFlight: v.GetInt("server.detection.max_in_flight"),
		},
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("server.port %d out of range", cfg.Port)
	}
	if cfg.Detection.RPS > 0 && cfg.Detection.Burst < 1 {
		return Config{}, fmt.Errorf("server.detection.burst must be at least 1 when rps is set")
	}
	if cfg.Detection.MaxInFlight < 0 {
		return Config{}, fmt.Errorf("server.detection.max_in_flight must not be negative")
	}
	return cfg, nil
}
