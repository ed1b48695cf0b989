// Package config loads the service settings from configs/config.yml and
// PID_TUNER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pid_tuner/internal/logger"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "PID_TUNER"
	devSigningKey     = "pid-tuner-dev-key"
	defaultConfigName = "config"
)

type Config struct {
	Port        string
	LogLevel    string
	DBPath      string
	Auth        Auth
	Link        Link
	Window      Window
	Protocol    Protocol
	Diagnostics Diagnostics
}

type Auth struct {
	SigningKey string
	TokenTTL   time.Duration
}

type Link struct {
	Port         string
	BaudRate     int
	ReadTimeout  time.Duration
	StartupGrace time.Duration
	TickInterval time.Duration
}

type Window struct {
	Capacity int
}

type Protocol struct {
	ReservedKeys []string
}

type Diagnostics struct {
	Capacity int
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "pid_tuner.db")
	v.SetDefault("auth.signing_key", devSigningKey)
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("link.port", "")
	v.SetDefault("link.baud_rate", 9600)
	v.SetDefault("link.read_timeout", 100*time.Millisecond)
	v.SetDefault("link.startup_grace", 2*time.Second)
	v.SetDefault("link.tick_interval", 200*time.Millisecond)
	v.SetDefault("window.capacity", 200)
	v.SetDefault("protocol.reserved_keys", []string{"Input", "Output"})
	v.SetDefault("diagnostics.capacity", 50)
}

// Load reads config.yml from the given directories (configs/ when none are
// given), applies env overrides and validates the result. A missing file
// is not an error.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	SetDefaults(v)

	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName(defaultConfigName)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:     v.GetString("port"),
		LogLevel: strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		DBPath:   v.GetString("db.path"),
		Auth: Auth{
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		Link: Link{
			Port:         v.GetString("link.port"),
			BaudRate:     v.GetInt("link.baud_rate"),
			ReadTimeout:  v.GetDuration("link.read_timeout"),
			StartupGrace: v.GetDuration("link.startup_grace"),
			TickInterval: v.GetDuration("link.tick_interval"),
		},
		Window:      Window{Capacity: v.GetInt("window.capacity")},
		Protocol:    Protocol{ReservedKeys: v.GetStringSlice("protocol.reserved_keys")},
		Diagnostics: Diagnostics{Capacity: v.GetInt("diagnostics.capacity")},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: port is empty")
	case !logger.ValidLevel(c.LogLevel):
		return fmt.Errorf("config: unknown log.level %q", c.LogLevel)
	case c.DBPath == "":
		return errors.New("config: db.path is empty")
	case c.Auth.SigningKey == "":
		return errors.New("config: auth.signing_key is empty")
	case c.Auth.TokenTTL <= 0:
		return fmt.Errorf("config: auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	case c.Link.BaudRate <= 0:
		return fmt.Errorf("config: link.baud_rate must be positive, got %d", c.Link.BaudRate)
	case c.Link.ReadTimeout <= 0:
		return fmt.Errorf("config: link.read_timeout must be positive, got %s", c.Link.ReadTimeout)
	case c.Link.TickInterval <= 0:
		return fmt.Errorf("config: link.tick_interval must be positive, got %s", c.Link.TickInterval)
	case c.Link.ReadTimeout > c.Link.TickInterval:
		return fmt.Errorf("config: link.read_timeout %s exceeds link.tick_interval %s", c.Link.ReadTimeout, c.Link.TickInterval)
	case c.Link.StartupGrace < 0:
		return fmt.Errorf("config: link.startup_grace must not be negative, got %s", c.Link.StartupGrace)
	case c.Window.Capacity <= 0:
		return fmt.Errorf("config: window.capacity must be a positive integer, got %d", c.Window.Capacity)
	case c.Diagnostics.Capacity <= 0:
		return fmt.Errorf("config: diagnostics.capacity must be positive, got %d", c.Diagnostics.Capacity)
	}
	return nil
}

// UsesDevSigningKey reports whether tokens are signed with the built-in key.
func (c Config) UsesDevSigningKey() bool {
	return c.Auth.SigningKey == devSigningKey
}
