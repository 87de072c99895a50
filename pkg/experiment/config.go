package experiment

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gilchrisn/rumor-spread-service/pkg/brd"
)

// Config manages experiment configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Single configuration
	v.SetDefault("experiment.threshold", 0.1)
	v.SetDefault("experiment.spreaders", 10)
	v.SetDefault("experiment.wise", 0)
	v.SetDefault("experiment.strategy", "none")
	v.SetDefault("experiment.trials", 10)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())

	// Sweep grid
	v.SetDefault("sweep.spreader_values", []int{10, 100, 1000, 10000})
	v.SetDefault("sweep.wise_values", []int{0, 5, 10, 20, 50, 100})
	v.SetDefault("sweep.strategies", []string{"random", "high_degree"})

	// Performance parameters
	v.SetDefault("performance.parallel_trials", true)
	v.SetDefault("performance.num_workers", runtime.NumCPU())
	v.SetDefault("performance.parallel", false)
	v.SetDefault("performance.chunk_size", 1000)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)

	v.SetDefault("input.graph_file", "musae_facebook.txt")
	v.SetDefault("input.num_nodes", 22470)
	v.SetDefault("output.plot_dir", ".")
	v.SetDefault("output.results_file", "")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) Threshold() float64 { return c.v.GetFloat64("experiment.threshold") }
func (c *Config) Spreaders() int      { return c.v.GetInt("experiment.spreaders") }
func (c *Config) Wise() int           { return c.v.GetInt("experiment.wise") }
func (c *Config) Strategy() string    { return c.v.GetString("experiment.strategy") }
func (c *Config) Trials() int         { return c.v.GetInt("experiment.trials") }
func (c *Config) RandomSeed() int64   { return c.v.GetInt64("algorithm.random_seed") }

func (c *Config) SpreaderValues() []int { return c.v.GetIntSlice("sweep.spreader_values") }
func (c *Config) WiseValues() []int     { return c.v.GetIntSlice("sweep.wise_values") }
func (c *Config) Strategies() []string  { return c.v.GetStringSlice("sweep.strategies") }

func (c *Config) ParallelTrials() bool { return c.v.GetBool("performance.parallel_trials") }
func (c *Config) NumWorkers() int      { return c.v.GetInt("performance.num_workers") }
func (c *Config) Parallel() bool       { return c.v.GetBool("performance.parallel") }
func (c *Config) ChunkSize() int       { return c.v.GetInt("performance.chunk_size") }

func (c *Config) LogLevel() string     { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

func (c *Config) GraphFile() string   { return c.v.GetString("input.graph_file") }
func (c *Config) NumNodes() int       { return c.v.GetInt("input.num_nodes") }
func (c *Config) PlotDir() string     { return c.v.GetString("output.plot_dir") }
func (c *Config) ResultsFile() string { return c.v.GetString("output.results_file") }

// BindFlag makes a command-line flag override key when it is set. An unset
// flag leaves the default or config file value in place.
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag bound to %s", key)
	}
	return c.v.BindPFlag(key, flag)
}

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Configuration returns the single configuration described by the
// experiment.* keys
func (c *Config) Configuration() Configuration {
	return Configuration{
		Threshold: c.Threshold(),
		Spreaders: c.Spreaders(),
		Wise:      c.Wise(),
		Strategy:  c.Strategy(),
		Trials:    c.Trials(),
	}
}

// Plan returns the sweep described by the sweep.* keys
func (c *Config) Plan() Plan {
	return Plan{
		Threshold:      c.Threshold(),
		Trials:         c.Trials(),
		SpreaderValues: c.SpreaderValues(),
		WiseValues:     c.WiseValues(),
		Strategies:     c.Strategies(),
	}
}

// EngineConfig derives the diffusion engine configuration. Per-run engine
// logging stays at warn unless debugging, since trials run by the thousand.
func (c *Config) EngineConfig() *brd.Config {
	engine := brd.NewConfig()
	engine.Set("algorithm.threshold", c.Threshold())
	engine.Set("performance.parallel", c.Parallel())
	engine.Set("performance.chunk_size", c.ChunkSize())
	engine.Set("performance.num_workers", c.NumWorkers())
	engine.Set("logging.enable_progress", false)
	if c.LogLevel() == "debug" || c.LogLevel() == "trace" {
		engine.Set("logging.level", c.LogLevel())
	} else {
		engine.Set("logging.level", "warn")
	}
	return engine
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
	}).Level(level).With().Timestamp().Str("service", "experiment").Logger()
}
