// Package attachments lists the files stored for a test case under
// <root>/<suite>/<name>.
package attachments

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// OS generated files that are never attachments.
var ignoredFiles = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

type Resolver struct {
	logger zerolog.Logger
	fs     afero.Fs
	root   string
}

// New returns a Resolver rooted at root. An empty root disables resolution.
func New(logger zerolog.Logger, fs afero.Fs, root string) *Resolver {
	if root != "" {
		if _, ok := fs.(*afero.OsFs); ok {
			if abs, err := filepath.Abs(root); err == nil {
				root = abs
			}
		}
	}
	return &Resolver{
		logger: logger,
		fs:     fs,
		root:   root,
	}
}

// Root returns the attachments root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the paths of the files attached to suite/name, in directory
// order. A missing directory is the normal case and yields nothing; other
// listing errors are logged and also yield nothing.
func (r *Resolver) Resolve(suite, name string) []string {
	if r == nil || r.root == "" {
		return nil
	}

	dir := filepath.Join(r.root, suite, name)
	infos, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to read case files")
		}
		return nil
	}

	var files []string
	for _, info := range infos {
		if ignoredFiles[info.Name()] {
			continue
		}
		files = append(files, filepath.Join(dir, info.Name()))
	}
	return files
}
