package brd

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages engine configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.threshold", 0.1)

	// Performance parameters
	v.SetDefault("performance.parallel", false)
	v.SetDefault("performance.chunk_size", 1000)
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", false)

	v.SetDefault("analysis.track_conversions", false)
	v.SetDefault("analysis.output_file", "conversions.jsonl")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) Threshold() float64 { return c.v.GetFloat64("algorithm.threshold") }

func (c *Config) Parallel() bool   { return c.v.GetBool("performance.parallel") }
func (c *Config) ChunkSize() int   { return c.v.GetInt("performance.chunk_size") }
func (c *Config) NumWorkers() int  { return c.v.GetInt("performance.num_workers") }
func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }

func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

func (c *Config) TrackConversions() bool     { return c.v.GetBool("analysis.track_conversions") }
func (c *Config) TrackingOutputFile() string { return c.v.GetString("analysis.output_file") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "brd").Logger()
}
