package firefox

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/log"
)

const (
	profilePrefix = "foxshot-profile-"
	prefsFileName = "prefs.js"

	// PortPref is the preference Firefox rewrites with the port Marionette
	// actually bound to when it's started with 0.
	PortPref = "marionette.port"
)

// Profile is a temporary Firefox profile directory.
type Profile struct {
	fs     afero.Fs
	dir    string
	logger *log.Logger

	cleanupOnce sync.Once
	cleanupErr  error
}

// NewProfile creates an empty profile directory under parentDir, or the
// system temp dir when parentDir is empty.
func NewProfile(fs afero.Fs, parentDir string, logger *log.Logger) (*Profile, error) {
	if logger == nil {
		logger = log.NewNullLogger()
	}

	dir, err := afero.TempDir(fs, parentDir, profilePrefix)
	if err != nil {
		return nil, &errext.FilesystemError{Op: "creating profile directory in", Path: parentDir, Err: err}
	}
	logger.Debugf("firefox:profile", "created %s", dir)

	return &Profile{fs: fs, dir: dir, logger: logger}, nil
}

// Dir returns the profile directory.
func (p *Profile) Dir() string {
	return p.dir
}

// PrefsPath returns the location of prefs.js inside the profile.
func (p *Profile) PrefsPath() string {
	return filepath.Join(p.dir, prefsFileName)
}

// WritePrefs writes prefs.js asking Marionette for an ephemeral port, followed
// by the extra preferences in key order.
func (p *Profile) WritePrefs(extra map[string]interface{}) error {
	var sb strings.Builder
	writePref(&sb, PortPref, "0")

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == PortPref {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("preference %q is managed by foxshot and can't be overridden", k),
				exitcodes.InvalidConfig)
		}
		v, err := prefValue(extra[k])
		if err != nil {
			return errext.WithExitCodeIfNone(fmt.Errorf("preference %q: %w", k, err), exitcodes.InvalidConfig)
		}
		writePref(&sb, k, v)
	}

	path := p.PrefsPath()
	if err := afero.WriteFile(p.fs, path, []byte(sb.String()), 0o644); err != nil {
		return &errext.FilesystemError{Op: "writing", Path: path, Err: err}
	}
	p.logger.Debugf("firefox:profile", "wrote %s with %d extra prefs", path, len(keys))

	return nil
}

// Cleanup removes the profile directory. Only the first call does any work.
func (p *Profile) Cleanup() error {
	p.cleanupOnce.Do(func() {
		if err := p.fs.RemoveAll(p.dir); err != nil {
			p.cleanupErr = &errext.FilesystemError{Op: "removing profile", Path: p.dir, Err: err}
			return
		}
		p.logger.Debugf("firefox:profile", "removed %s", p.dir)
	})
	return p.cleanupErr
}

func writePref(sb *strings.Builder, key, value string) {
	fmt.Fprintf(sb, "user_pref(%s, %s);\n", strconv.Quote(key), value)
}

func prefValue(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v != float64(int64(v)) {
			return "", fmt.Errorf("only integer numbers are supported, got %v", v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
