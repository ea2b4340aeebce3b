package config

import (
	"fmt"
	"os"
	"strings"

	"codeberg.org/mutker/envlogger/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath   = "/etc/envlogger.toml"
	DefaultEnvPrefix    = "ENVLOGGER"
	DefaultLogLevel     = LogLevelWarning
	DefaultInterval     = 300
	DefaultPollInterval = 100
	DefaultAttempt      = 5000
	DefaultDBPath       = "/var/lib/envlogger/readings.db"
	DefaultBatchSize    = 100
	DefaultBatchTimeout = 30
)

// Driver names accepted in [[sensors]].
const (
	DriverSDI12 = "sdi12"
	DriverK30   = "k30"
	DriverAtlas = "atlas_do"
)

type Config struct {
	// Interval is the logging interval in seconds.
	Interval int `mapstructure:"interval"`
	// PollInterval is the pause between polling passes in milliseconds.
	PollInterval int `mapstructure:"poll_interval"`
	// AttemptTimeout is how long a measurement may stay pending past its
	// nominal measurement time, in milliseconds.
	AttemptTimeout int `mapstructure:"attempt_timeout"`
	// RetryBudget overrides the per-driver attempt budget when positive.
	RetryBudget int    `mapstructure:"retry_budget"`
	LogLevel    string `mapstructure:"log_level"`
	Debug       bool   `mapstructure:"debug"`
	Verbose     bool   `mapstructure:"verbose"`
	Once        bool   `mapstructure:"once"`
	// PIDFile guards against a second instance; empty uses the temp dir.
	PIDFile string `mapstructure:"pid_file"`

	Metrics   Metrics   `mapstructure:"metrics"`
	Telemetry Telemetry `mapstructure:"telemetry"`
	Sensors   []Sensor  `mapstructure:"sensors"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
	// BatchSize is how many readings are buffered before a write.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the longest a buffered reading waits, in seconds.
	BatchTimeout int `mapstructure:"batch_timeout"`
}

type Telemetry struct {
	// Listen is the address of the Prometheus endpoint; empty disables it.
	Listen string `mapstructure:"listen"`
}

// Sensor is one [[sensors]] table.
type Sensor struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	Model  string `mapstructure:"model"`

	Port    string `mapstructure:"port"`
	Baud    int    `mapstructure:"baud"`
	Address string `mapstructure:"address"`

	I2CBus     string `mapstructure:"i2c_bus"`
	I2CAddress int    `mapstructure:"i2c_address"`

	// Bus groups sensors that must not measure at the same time.
	Bus string `mapstructure:"bus"`

	PowerBackend    string `mapstructure:"power_backend"`
	PowerPin        string `mapstructure:"power_pin"`
	AdapterPowerPin string `mapstructure:"adapter_power_pin"`

	MeasurementsToAverage int `mapstructure:"measurements_to_average"`
}

// Flags returns the command line flags Load understands.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to the configuration file")
	fs.Int("interval", DefaultInterval, "Logging interval in seconds")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("once", false, "Run a single logging cycle and exit")
	fs.Bool("metrics", false, "Store readings in the metrics database")
	fs.String("listen", "", "Serve Prometheus metrics on this address")

	return fs
}

var flagKeys = map[string]string{
	"interval":  "interval",
	"log-level": "log_level",
	"debug":     "debug",
	"verbose":   "verbose",
	"once":      "once",
	"metrics":   "metrics.enabled",
	"listen":    "telemetry.listen",
}

// Load reads the configuration file, environment and flags, in increasing
// order of precedence, and validates the result.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := Flags("envlogger")
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	path, explicit := configPath(fs, o)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("attempt_timeout", DefaultAttempt)
	v.SetDefault("retry_budget", 0)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.db_path", DefaultDBPath)
	v.SetDefault("metrics.batch_size", DefaultBatchSize)
	v.SetDefault("metrics.batch_timeout", DefaultBatchTimeout)
	v.SetDefault("telemetry.listen", "")
	v.SetDefault("pid_file", "")
}

// configPath picks --config, then <PREFIX>_CONFIG, then the default path.
// Only the default may be missing.
func configPath(fs *pflag.FlagSet, o options) (string, bool) {
	if path, _ := fs.GetString("config"); path != "" {
		return path, true
	}
	if o.configPath != "" {
		return o.configPath, true
	}
	if path := os.Getenv(o.envPrefix + "_CONFIG"); path != "" {
		return path, true
	}

	return DefaultConfigPath, false
}

// EffectiveLogLevel applies --debug and --verbose on top of log_level.
func (c *Config) EffectiveLogLevel() string {
	switch {
	case c.Debug:
		return string(LogLevelDebug)
	case c.Verbose:
		return string(LogLevelInfo)
	default:
		return c.LogLevel
	}
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.PollInterval <= 0 || c.AttemptTimeout < 0 || c.RetryBudget < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig,
			fmt.Sprintf("poll_interval %d, attempt_timeout %d, retry_budget %d", c.PollInterval, c.AttemptTimeout, c.RetryBudget))
	}
	if c.LogLevel != "" && !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Metrics.Enabled && c.Metrics.DBPath == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "metrics.db_path is empty")
	}
	if len(c.Sensors) == 0 {
		return errFactory.WithData(errors.ErrMissingConfig, "no [[sensors]] configured")
	}

	seen := make(map[string]bool, len(c.Sensors))
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if err := s.validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return errFactory.WithData(errors.ErrInvalidSensor, fmt.Sprintf("duplicate sensor name %q", s.Name))
		}
		seen[s.Name] = true
	}

	return nil
}

func (s *Sensor) validate() error {
	errFactory := errors.New()
	invalid := func(reason string) error {
		return errFactory.WithData(errors.ErrInvalidSensor, fmt.Sprintf("%s: %s", s.Name, reason))
	}

	if s.Name == "" {
		return errFactory.WithData(errors.ErrInvalidSensor, "sensor without a name")
	}
	if s.MeasurementsToAverage < 0 {
		return invalid("measurements_to_average must not be negative")
	}

	switch s.Driver {
	case DriverSDI12:
		if s.Port == "" {
			return invalid("port is required")
		}
		if len(s.Address) != 1 {
			return invalid("address must be a single character")
		}
		if s.Model == "" {
			return invalid("model is required")
		}
	case DriverK30:
		if s.Port == "" {
			return invalid("port is required")
		}
	case DriverAtlas:
		if s.I2CBus == "" {
			return invalid("i2c_bus is required")
		}
		if s.I2CAddress < 0 || s.I2CAddress > 0x7F {
			return invalid("i2c_address out of range")
		}
	default:
		return invalid(fmt.Sprintf("unknown driver %q", s.Driver))
	}

	if s.Baud < 0 {
		return invalid("baud must not be negative")
	}

	return nil
}
