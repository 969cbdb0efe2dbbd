// ABOUTME: Configuration loading for the server and player binaries
// ABOUTME: Merges defaults, a YAML file, RESONATE_* environment and flag overrides
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. RESONATE_SERVER_PORT
const EnvPrefix = "RESONATE"

// Log configures logger construction
type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Server configures the authoritative peer
type Server struct {
	Port  int    `mapstructure:"port"`
	Name  string `mapstructure:"name"`
	MDNS  bool   `mapstructure:"mdns"`
	Audio bool   `mapstructure:"audio"`
	Debug bool   `mapstructure:"debug"`
	TUI   bool   `mapstructure:"tui"`
}

// Player configures the dependent peer
type Player struct {
	Server           string        `mapstructure:"server"`
	Name             string        `mapstructure:"name"`
	TUI              bool          `mapstructure:"tui"`
	Reconnect        time.Duration `mapstructure:"reconnect"`
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
}

// Config is the full configuration file
type Config struct {
	Log    Log    `mapstructure:"log"`
	Server Server `mapstructure:"server"`
	Player Player `mapstructure:"player"`

	// Source is the file that was read, empty when only defaults applied
	Source string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("server.port", 8927)
	v.SetDefault("server.name", "")
	v.SetDefault("server.mdns", true)
	v.SetDefault("server.audio", true)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.tui", true)

	v.SetDefault("player.server", "")
	v.SetDefault("player.name", "")
	v.SetDefault("player.tui", true)
	v.SetDefault("player.reconnect", "2s")
	v.SetDefault("player.discovery_timeout", "10s")
}

// Load reads configuration. An explicit file must exist; with an empty file
// resonate.yaml is searched in the working directory and ./config. Overrides
// are dotted keys (e.g. "server.port") and win over every other source.
func Load(file string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("resonate")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Player.Reconnect < 0 {
		return fmt.Errorf("invalid player.reconnect %s", c.Player.Reconnect)
	}
	return nil
}
