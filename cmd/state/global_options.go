package state

import (
	"path/filepath"

	"github.com/liuxd6825/foxshot/env"
)

const defaultConfigFileName = "config.yaml"

// GlobalOptions contains global config values that apply for all foxshot sub-commands.
type GlobalOptions struct {
	ConfigFilePath    string
	Quiet             bool
	NoColor           bool
	LogOutput         string
	LogFormat         string
	LogCategoryFilter string
	LogCaller         bool
	TracesOutput      string
	Verbose           bool
}

// GetDefaultGlobalOptions returns the default global flags.
func GetDefaultGlobalOptions(confDir string) GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: filepath.Join(confDir, "foxshot", defaultConfigFileName),
		LogOutput:      "stderr",
		TracesOutput:   "none",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, envMap map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := envMap[env.Prefix+"CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := envMap[env.Prefix+"LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := envMap[env.Prefix+"LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if val, ok := envMap[env.LogCategoryFilter]; ok {
		result.LogCategoryFilter = val
	}
	if val, ok := envMap[env.Prefix+"TRACES_OUTPUT"]; ok {
		result.TracesOutput = val
	}
	lookup := env.MapLookup(envMap)
	if env.IsTruthy(lookup, env.LogCaller) {
		result.LogCaller = true
	}
	if env.IsTruthy(lookup, env.Prefix+"QUIET") {
		result.Quiet = true
	}
	if envMap[env.Prefix+"NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := envMap["NO_COLOR"]; ok {
		result.NoColor = true
	}
	return result
}
