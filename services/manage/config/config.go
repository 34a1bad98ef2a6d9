package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the manage service configuration. It is loaded once at process
// start and injected into components; nothing re-reads the file per request.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Notify   NotifyConfig
	Query    QueryConfig
	Worker   WorkerConfig
	NewRelic NewRelicConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port int
	Mode string // debug, release, test
}

// DatabaseConfig holds the PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the Redis configuration for the report endpoint cache
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds the report blob store configuration
type StorageConfig struct {
	BucketName  string
	EndpointURL string // base URL used to construct durable report endpoints
	Region      string
}

// NotifyConfig holds the downstream notify service configuration
type NotifyConfig struct {
	URL            string
	TimeoutSeconds int
}

// QueryConfig holds the status query configuration
type QueryConfig struct {
	MaxCount int
}

// WorkerConfig holds the outbox retry worker configuration
type WorkerConfig struct {
	IntervalSeconds int
	BatchSize       int
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// InitConfig initializes the configuration using Viper
func InitConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/manage-service")
		viper.SetConfigName("config")
	}

	// MANAGE_DATABASE_HOST overrides database.host, and so on
	viper.SetEnvPrefix("MANAGE")
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

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "manage")
	viper.SetDefault("database.password", "manage")
	viper.SetDefault("database.dbname", "manage_db")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("storage.region", "us-east-1")

	viper.SetDefault("notify.url", "http://notify:8080")
	viper.SetDefault("notify.timeout_seconds", 10)

	viper.SetDefault("query.max_count", 10)

	viper.SetDefault("worker.interval_seconds", 60)
	viper.SetDefault("worker.batch_size", 20)

	viper.SetDefault("newrelic.appname", "Manage Service Local")
	viper.SetDefault("newrelic.enabled", false)
}

// Load loads the configuration
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: viper.GetInt("server.port"),
			Mode: viper.GetString("server.mode"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("database.host"),
			Port:     viper.GetInt("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			DBName:   viper.GetString("database.dbname"),
			SSLMode:  viper.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetInt("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			BucketName:  viper.GetString("storage.bucket_name"),
			EndpointURL: viper.GetString("storage.endpoint_url"),
			Region:      viper.GetString("storage.region"),
		},
		Notify: NotifyConfig{
			URL:            viper.GetString("notify.url"),
			TimeoutSeconds: viper.GetInt("notify.timeout_seconds"),
		},
		Query: QueryConfig{
			MaxCount: viper.GetInt("query.max_count"),
		},
		Worker: WorkerConfig{
			IntervalSeconds: viper.GetInt("worker.interval_seconds"),
			BatchSize:       viper.GetInt("worker.batch_size"),
		},
		NewRelic: NewRelicConfig{
			AppName:    viper.GetString("newrelic.appname"),
			LicenseKey: viper.GetString("newrelic.licensekey"),
			Enabled:    viper.GetBool("newrelic.enabled"),
		},
	}, nil
}
