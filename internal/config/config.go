package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/vigilspace/vigil/pkg/core"
)

// ConfigFileName is the JSON config file vigil looks for.
const ConfigFileName = "vigil.cfg.json"

// SessionConfig is the named-constant surface of the session engine.
// Product-policy choices (note length, load window, reopen behavior) live
// here rather than being inferred at call sites.
type SessionConfig struct {
	Canvas        core.Size
	MaxNoteLength int
	LoadWindow    time.Duration
	ReopenNotes   bool
	TooltipSize   core.Size
	PopoverSize   core.Size
	Margin        float64
}

// Load reads configuration from the JSON file in configDir and sets
// default values. Missing file is not an error; defaults apply.
func Load(configDir string) error {
	// Logging
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logConsole", true)

	// World canvas
	viper.SetDefault("canvas.width", 3000)
	viper.SetDefault("canvas.height", 2000)

	// Session policy
	viper.SetDefault("session.maxNoteLength", 200)
	viper.SetDefault("session.loadWindow", "0s")
	viper.SetDefault("session.reopenNotes", false)
	viper.SetDefault("session.tooltip.width", 220)
	viper.SetDefault("session.tooltip.height", 120)
	viper.SetDefault("session.popover.width", 400)
	viper.SetDefault("session.popover.height", 320)
	viper.SetDefault("session.margin", 8)

	// Storage backend: memory | sqlite | postgres | api
	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.path", "./vigil.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "vigil")

	// Remote store API (api backend and vigild server)
	viper.SetDefault("api.serverUrl", "http://localhost:8080")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("http.cors.allowedOrigins", []string{})
	viper.SetDefault("http.cors.allowCredentials", false)

	// Telemetry
	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "vigil-metrics")
	viper.SetDefault("influx.bucket", "session_data")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Session assembles the session engine configuration from viper state.
func Session() SessionConfig {
	return SessionConfig{
		Canvas: core.Size{
			Width:  viper.GetFloat64("canvas.width"),
			Height: viper.GetFloat64("canvas.height"),
		},
		MaxNoteLength: viper.GetInt("session.maxNoteLength"),
		LoadWindow:    viper.GetDuration("session.loadWindow"),
		ReopenNotes:   viper.GetBool("session.reopenNotes"),
		TooltipSize: core.Size{
			Width:  viper.GetFloat64("session.tooltip.width"),
			Height: viper.GetFloat64("session.tooltip.height"),
		},
		PopoverSize: core.Size{
			Width:  viper.GetFloat64("session.popover.width"),
			Height: viper.GetFloat64("session.popover.height"),
		},
		Margin: viper.GetFloat64("session.margin"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
