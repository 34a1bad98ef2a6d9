package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the notify service configuration. Loaded once at process start;
// the local consumer settings are read-mostly and never re-read per request.
type Config struct {
	Server ServerConfig
	Local  LocalConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port int
	Mode string // debug, release, test
}

// LocalConfig holds the local-data consumer connection settings
type LocalConfig struct {
	URL            string
	APIKey         string
	TimeoutSeconds int
}

// InitConfig initializes the configuration using Viper
func InitConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/notify-service")
		viper.SetConfigName("config")
	}

	// NOTIFY_LOCAL_URL overrides local.url, and so on
	viper.SetEnvPrefix("NOTIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("No config file found, using defaults and environment variables")
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	// No default local consumer URL or key; both must be configured.
	viper.SetDefault("local.timeout_seconds", 10)
}

// Load loads the configuration
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: viper.GetInt("server.port"),
			Mode: viper.GetString("server.mode"),
		},
		Local: LocalConfig{
			URL:            viper.GetString("local.url"),
			APIKey:         viper.GetString("local.api_key"),
			TimeoutSeconds: viper.GetInt("local.timeout_seconds"),
		},
	}, nil
}
