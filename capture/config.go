package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/foxshot/env"
	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/lib/types"
)

// Config holds the browser and timing settings of a capture run. Every
// field is nullable so that later sources only override what they set.
type Config struct {
	FirefoxBin       null.String        `json:"firefoxBin" yaml:"firefoxBin" envconfig:"FIREFOX_BIN"`
	Host             null.String        `json:"host" yaml:"host" envconfig:"FOXSHOT_HOST"`
	ProfileParentDir null.String        `json:"profileParentDir" yaml:"profileParentDir" envconfig:"FOXSHOT_PROFILE_PARENT_DIR"`
	DialTimeout      types.NullDuration `json:"dialTimeout" yaml:"dialTimeout" envconfig:"FOXSHOT_DIAL_TIMEOUT"`
	PollInterval     types.NullDuration `json:"pollInterval" yaml:"pollInterval" envconfig:"FOXSHOT_POLL_INTERVAL"`
	DiscoveryTimeout types.NullDuration `json:"discoveryTimeout" yaml:"discoveryTimeout" envconfig:"FOXSHOT_DISCOVERY_TIMEOUT"`
	ShutdownGrace    types.NullDuration `json:"shutdownGrace" yaml:"shutdownGrace" envconfig:"FOXSHOT_SHUTDOWN_GRACE"`

	// Prefs are written to prefs.js next to the marionette port.
	Prefs map[string]interface{} `json:"prefs,omitempty" yaml:"prefs,omitempty" ignored:"true"`
	// ExtraArgs are appended to the browser command line.
	ExtraArgs []string `json:"extraArgs,omitempty" yaml:"extraArgs,omitempty" envconfig:"FOXSHOT_FIREFOX_ARGS"`
}

// NewConfig returns the default configuration.
func NewConfig() Config {
	return Config{
		Host:             null.StringFrom("127.0.0.1"),
		DialTimeout:      types.NullDurationFrom(5 * time.Second),
		PollInterval:     types.NullDurationFrom(100 * time.Millisecond),
		DiscoveryTimeout: types.NullDurationFrom(30 * time.Second),
		ShutdownGrace:    types.NullDurationFrom(10 * time.Second),
	}
}

// Apply returns c with every set field of cfg layered on top.
func (c Config) Apply(cfg Config) Config {
	if cfg.FirefoxBin.Valid {
		c.FirefoxBin = cfg.FirefoxBin
	}
	if cfg.Host.Valid {
		c.Host = cfg.Host
	}
	if cfg.ProfileParentDir.Valid {
		c.ProfileParentDir = cfg.ProfileParentDir
	}
	if cfg.DialTimeout.Valid {
		c.DialTimeout = cfg.DialTimeout
	}
	if cfg.PollInterval.Valid {
		c.PollInterval = cfg.PollInterval
	}
	if cfg.DiscoveryTimeout.Valid {
		c.DiscoveryTimeout = cfg.DiscoveryTimeout
	}
	if cfg.ShutdownGrace.Valid {
		c.ShutdownGrace = cfg.ShutdownGrace
	}
	if len(cfg.Prefs) > 0 {
		merged := make(map[string]interface{}, len(c.Prefs)+len(cfg.Prefs))
		for k, v := range c.Prefs {
			merged[k] = v
		}
		for k, v := range cfg.Prefs {
			merged[k] = v
		}
		c.Prefs = merged
	}
	if len(cfg.ExtraArgs) > 0 {
		c.ExtraArgs = cfg.ExtraArgs
	}
	return c
}

// Validate checks the values make sense for a run.
func (c Config) Validate() error {
	var errs []error
	if c.Host.String == "" {
		errs = append(errs, errors.New("host must not be empty"))
	} else if ip := net.ParseIP(c.Host.String); ip == nil && c.Host.String != "localhost" {
		errs = append(errs, fmt.Errorf("host %q is not an IP address", c.Host.String))
	}
	for name, d := range map[string]types.NullDuration{
		"dialTimeout":      c.DialTimeout,
		"pollInterval":     c.PollInterval,
		"discoveryTimeout": c.DiscoveryTimeout,
	} {
		if d.TimeDuration() <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d.Duration))
		}
	}
	if c.ShutdownGrace.TimeDuration() < 0 {
		errs = append(errs, fmt.Errorf("shutdownGrace must not be negative, got %s", c.ShutdownGrace.Duration))
	}

	if err := errors.Join(errs...); err != nil {
		return errext.WithExitCodeIfNone(fmt.Errorf("invalid configuration: %w", err), exitcodes.InvalidConfig)
	}
	return nil
}

// ParseYAML decodes a config file. Unknown keys are an error.
func ParseYAML(data []byte) (Config, error) {
	var conf Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return conf, errext.WithExitCodeIfNone(fmt.Errorf("parsing the config file: %w", err), exitcodes.InvalidConfig)
	}
	return conf, nil
}

// ConfigFromEnv reads the FOXSHOT_* variables and FIREFOX_BIN out of envMap.
func ConfigFromEnv(envMap map[string]string) (Config, error) {
	var conf Config
	lookup := env.MapLookup(envMap)
	if err := envconfig.Process("", &conf, lookup); err != nil {
		return conf, errext.WithExitCodeIfNone(fmt.Errorf("reading the environment: %w", err), exitcodes.InvalidConfig)
	}
	return conf, nil
}

// GetConsolidatedConfig layers the defaults, the config file, the
// environment and the command line flags, in that order, and validates the
// result.
func GetConsolidatedConfig(fileConf []byte, envMap map[string]string, flagConf Config) (Config, error) {
	result := NewConfig()

	if len(fileConf) > 0 {
		conf, err := ParseYAML(fileConf)
		if err != nil {
			return result, err
		}
		result = result.Apply(conf)
	}

	envConf, err := ConfigFromEnv(envMap)
	if err != nil {
		return result, err
	}
	result = result.Apply(envConf).Apply(flagConf)

	return result, result.Validate()
}
