package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/foxshot/capture"
	"github.com/liuxd6825/foxshot/cmd/state"
	"github.com/liuxd6825/foxshot/env"
	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
)

func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", 0)
	flags.SortFlags = false
	flags.String("firefox-bin", "", "path to the Firefox executable, overrides "+env.FirefoxBin)
	flags.String("host", "127.0.0.1", "address Marionette listens on")
	flags.String("profile-dir", "", "parent `directory` for the temporary profile (default: the system temp dir)")
	flags.Duration("dial-timeout", 0, "how long to wait for the Marionette connection")
	flags.Lookup("dial-timeout").DefValue = "5s"
	flags.Duration("poll-interval", 0, "how often to look for the Marionette port in prefs.js")
	flags.Lookup("poll-interval").DefValue = "100ms"
	flags.Duration("discovery-timeout", 0, "how long Firefox may take to publish the Marionette port")
	flags.Lookup("discovery-timeout").DefValue = "30s"
	flags.Duration("shutdown-grace", 0, "how long Firefox may take to exit before it's killed")
	flags.Lookup("shutdown-grace").DefValue = "10s"
	flags.StringArray("pref", nil, "extra Firefox preference as `name=value`, can be repeated")
	flags.StringArray("firefox-arg", nil, "extra Firefox command line argument, can be repeated")
	return flags
}

// getConfigFromFlags returns a Config with only the values the user set on
// the command line.
func getConfigFromFlags(flags *pflag.FlagSet) (capture.Config, error) {
	conf := capture.Config{
		FirefoxBin:       getNullString(flags, "firefox-bin"),
		Host:             getNullString(flags, "host"),
		ProfileParentDir: getNullString(flags, "profile-dir"),
		DialTimeout:      getNullDuration(flags, "dial-timeout"),
		PollInterval:     getNullDuration(flags, "poll-interval"),
		DiscoveryTimeout: getNullDuration(flags, "discovery-timeout"),
		ShutdownGrace:    getNullDuration(flags, "shutdown-grace"),
	}

	prefs, err := flags.GetStringArray("pref")
	if err != nil {
		return conf, err
	}
	if len(prefs) > 0 {
		conf.Prefs = make(map[string]interface{}, len(prefs))
		for _, p := range prefs {
			name, value, err := parsePref(p)
			if err != nil {
				return conf, err
			}
			conf.Prefs[name] = value
		}
	}

	conf.ExtraArgs, err = flags.GetStringArray("firefox-arg")
	return conf, err
}

// parsePref splits name=value and types the value the way a YAML scalar
// would be: true/false, integers and everything else as a string.
func parsePref(s string) (string, interface{}, error) {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, errext.WithExitCodeIfNone(
			fmt.Errorf("preference %q should be in the form name=value", s), exitcodes.InvalidConfig)
	}

	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		return name, raw, nil //nolint:nilerr
	}
	switch value.(type) {
	case bool, int, string:
		return name, value, nil
	default:
		return name, raw, nil
	}
}

// readDiskConfig returns the config file's contents. A missing file is only
// an error when the path was chosen explicitly.
func readDiskConfig(gs *state.GlobalState) ([]byte, error) {
	data, err := afero.ReadFile(gs.FS, gs.Flags.ConfigFilePath)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, fs.ErrNotExist) && gs.Flags.ConfigFilePath == gs.DefaultFlags.ConfigFilePath {
		gs.Logger.Debugf("no config file at %s", gs.Flags.ConfigFilePath)
		return nil, nil
	}
	return nil, errext.WithExitCodeIfNone(
		fmt.Errorf("couldn't read the config file %s: %w", gs.Flags.ConfigFilePath, err), exitcodes.InvalidConfig)
}

// getConsolidatedConfig layers the config file, the environment and the
// command line flags over the defaults.
func getConsolidatedConfig(gs *state.GlobalState, flags *pflag.FlagSet) (capture.Config, error) {
	flagConf, err := getConfigFromFlags(flags)
	if err != nil {
		return capture.Config{}, err
	}
	fileConf, err := readDiskConfig(gs)
	if err != nil {
		return capture.Config{}, err
	}
	return capture.GetConsolidatedConfig(fileConf, gs.Env, flagConf)
}

type configCmd struct {
	gs     *state.GlobalState
	isJSON bool
}

func (c *configCmd) run(cmd *cobra.Command, _ []string) error {
	conf, err := getConsolidatedConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}
	if c.isJSON {
		return c.gs.Console.PrintJSON(conf)
	}
	return c.gs.Console.PrintYAML(conf)
}

func getCmdConfig(gs *state.GlobalState) *cobra.Command {
	c := &configCmd{gs: gs}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the consolidated configuration",
		Long: `Show the configuration a capture would run with.

Values come from the defaults, the config file, the ` + env.Prefix + `* environment
variables and ` + env.FirefoxBin + `, and the command line flags, in that order.`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	cmd.Flags().SortFlags = false
	cmd.Flags().AddFlagSet(configFlagSet())
	cmd.Flags().BoolVar(&c.isJSON, "json", false, "print the configuration as JSON")

	return cmd
}
