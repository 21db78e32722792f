package testutils

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// MakeMemMapFs creates a new in-memory filesystem with the given files.
//
// The keys of the withFiles map are the paths of the files to create, and the
// values are the contents of the files. The files are created with 644 mode.
func MakeMemMapFs(t testing.TB, withFiles map[string][]byte) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, data := range withFiles {
		require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	}

	return fs
}
