package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/foxshot/cmd/state"
	"github.com/liuxd6825/foxshot/lib/types"
	"github.com/liuxd6825/foxshot/log"
)

// Panic if the given error is not nil.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// TODO: refactor the CLI config so these functions aren't needed - they
// can mask errors by failing only at runtime, not at compile time
func getNullDuration(flags *pflag.FlagSet, key string) types.NullDuration {
	v, err := flags.GetDuration(key)
	if err != nil {
		panic(err)
	}
	return types.NullDuration{Duration: types.Duration(v), Valid: flags.Changed(key)}
}

func getNullString(flags *pflag.FlagSet, key string) null.String {
	v, err := flags.GetString(key)
	if err != nil {
		panic(err)
	}
	return null.NewString(v, flags.Changed(key))
}

func exactArgsWithMsg(n int, msg string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("accepts %d arg(s), received %d: %s", n, len(args), msg)
		}
		return nil
	}
}

func newCategoryFilter(filter string) (*regexp.Regexp, error) {
	if filter == "" {
		return nil, nil //nolint:nilnil
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid log category filter %q: %w", filter, err)
	}
	return re, nil
}

// newLogger wraps the global logger into the categorised one the capture
// components log through.
func newLogger(gs *state.GlobalState) (*log.Logger, error) {
	filter, err := newCategoryFilter(gs.Flags.LogCategoryFilter)
	if err != nil {
		return nil, err
	}
	logger := log.New(gs.Logger, false, filter)
	if gs.Flags.LogCaller {
		logger.ReportCaller()
	}
	return logger, nil
}
