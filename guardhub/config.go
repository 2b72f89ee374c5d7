package guardhub

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/restartfu/gophig"
)

// Config holds the hub configuration, including paths and service-related
// settings.
type Config struct {
	GuardHub struct {
		SentryDsn  string
		LogLevel   string // Can be "debug", "info", "warn", "error"
		ServerPath string
		LocalePath string
		StorePath  string
	}
	Service struct {
		GinAddress string

		// APIKey authorizes callers of the hub's own API.
		APIKey string
		// AgentKey is presented to downstream agents and session
		// callbacks.
		AgentKey string
	}
}

// DefaultConfig returns a config with prefilled default values.
func DefaultConfig() Config {
	c := Config{}

	c.GuardHub.SentryDsn = ""
	c.GuardHub.LogLevel = "info"
	c.GuardHub.ServerPath = "resources/servers"
	c.GuardHub.LocalePath = "resources/locales"
	c.GuardHub.StorePath = "resources/punishments.db"

	c.Service.GinAddress = ":8080"
	c.Service.APIKey = "secret-key"
	c.Service.AgentKey = "secret-key"

	return c
}

// ParseLogLevel returns the appropriate slog.Level based on string configuration.
// Returns an error if the provided log level string is not recognized.
func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unrecognized log level: %q", level)
	}
}

// ReadConfig loads the hub configuration from config.toml.
// If the file doesn't exist, it creates a new one with default values.
// Returns the loaded configuration and any error encountered.
func ReadConfig() (Config, error) {
	g := gophig.NewGophig[Config]("./config.toml", gophig.TOMLMarshaler{}, os.ModePerm)
	_, err := g.LoadConf()
	if os.IsNotExist(err) {
		err = g.SaveConf(DefaultConfig())
		if err != nil {
			return Config{}, err
		}
	}
	c, err := g.LoadConf()
	return c, err
}
