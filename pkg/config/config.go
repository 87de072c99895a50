package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the HTTP service settings. Every key can be overridden from
// the environment with dots replaced by underscores, e.g. SERVER_ADDRESS.
type Config struct {
	Server  ServerConfig
	Jobs    JobConfig
	CORS    CORSConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type JobConfig struct {
	MaxWorkers      int
	TrialWorkers    int
	JobTimeout      time.Duration
	CleanupInterval time.Duration
	ResultTTL       time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level string
}

// Load reads defaults, the optional config file, and the environment
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("jobs.max_workers", 4)
	v.SetDefault("jobs.trial_workers", 4)
	v.SetDefault("jobs.timeout", 10*time.Minute)
	v.SetDefault("jobs.cleanup_interval", 5*time.Minute)
	v.SetDefault("jobs.result_ttl", time.Hour)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("logging.level", "info")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &Config{
		Server: ServerConfig{
			Address:      v.GetString("server.address"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Jobs: JobConfig{
			MaxWorkers:      v.GetInt("jobs.max_workers"),
			TrialWorkers:    v.GetInt("jobs.trial_workers"),
			JobTimeout:      v.GetDuration("jobs.timeout"),
			CleanupInterval: v.GetDuration("jobs.cleanup_interval"),
			ResultTTL:       v.GetDuration("jobs.result_ttl"),
		},
		CORS: CORSConfig{
			AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("logging.level"),
		},
	}, nil
}
