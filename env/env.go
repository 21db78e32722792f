// Package env holds the environment variable names foxshot reads and small
// helpers to look them up from an injectable environment.
package env

import (
	"sort"
	"strings"
)

const (
	// FirefoxBin overrides the browser executable.
	FirefoxBin = "FIREFOX_BIN"

	// Prefix is shared by every foxshot configuration variable.
	Prefix = "FOXSHOT_"

	// LogCategoryFilter restricts log output to matching categories.
	LogCategoryFilter = Prefix + "LOG_CATEGORY_FILTER"

	// LogCaller makes the logger report the calling function.
	LogCaller = Prefix + "LOG_CALLER"
)

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// MapLookup returns a LookupFunc backed by m.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ParseEnviron turns os.Environ style KEY=value pairs into a map. Entries
// without a '=' are kept with an empty value.
func ParseEnviron(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		if k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// Environ is the inverse of ParseEnviron. Keys are sorted so the result is
// stable.
func Environ(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// IsTruthy reports whether key is set to a value meaning "on".
func IsTruthy(lookup LookupFunc, key string) bool {
	v, ok := lookup(key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
