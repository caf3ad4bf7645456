// Package attachment maps uploaded images to uniquely named files under the uploads directory.
package attachment

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/dormportal/core"
)

// PublicPrefix is the URL prefix under which uploads are served.
const PublicPrefix = "/uploads/"

// DeleteResult is the outcome of a best-effort deletion. Callers are free to ignore it.
type DeleteResult int

const (
	DeleteSkipped DeleteResult = iota // no path, or a path outside the uploads prefix
	DeleteMissing                     // nothing on disk
	Deleted
	DeleteFailed
)

func (r DeleteResult) String() string {
	switch r {
	case DeleteSkipped:
		return "skipped"
	case DeleteMissing:
		return "missing"
	case Deleted:
		return "deleted"
	default:
		return "failed"
	}
}

var newToken = func() string { return strings.ReplaceAll(uuid.New().String(), "-", "") } // mockable

type (
	// Storer writes uploads and deletes them, best-effort.
	Storer interface {
		Store(r io.Reader, originalName string) (string, error)
		Delete(publicPath string) DeleteResult
	}

	Manager struct {
		fs     afero.Fs
		dir    string
		logger core.Logger
	}
)

var _ Storer = (*Manager)(nil) // interface compliance check

// NewManager returns a Manager writing into dir on fs.
func NewManager(fs afero.Fs, dir string, logger core.Logger) *Manager {
	return &Manager{fs: fs, dir: filepath.Clean(dir), logger: logger}
}

// NewDiskManager returns a Manager backed by the OS filesystem.
func NewDiskManager(dir string, logger core.Logger) *Manager {
	return NewManager(afero.NewOsFs(), dir, logger)
}

// Dir is the directory uploads are written to.
func (m *Manager) Dir() string { return m.dir }

// EnsureDir creates the uploads directory if needed.
func (m *Manager) EnsureDir() error {
	return errors.Wrap(m.fs.MkdirAll(m.dir, 0o755), "creating uploads dir")
}

// SanitizeFilename strips path separators so the name cannot escape the uploads directory.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

// Store writes the whole stream under a new unique name and returns its public path.
func (m *Manager) Store(r io.Reader, originalName string) (string, error) {
	if err := m.EnsureDir(); err != nil {
		return "", err
	}

	outName := fmt.Sprintf("%s_%s", newToken(), SanitizeFilename(originalName))
	f, err := m.fs.OpenFile(filepath.Join(m.dir, outName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = m.fs.Remove(filepath.Join(m.dir, outName))
		return "", errors.Wrap(err, "writing upload file")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing upload file")
	}
	return PublicPrefix + outName, nil
}

// diskPath resolves a public path to a file inside the uploads dir; ok is false for anything else.
func (m *Manager) diskPath(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == "" || name != path.Base(name) || name == ".." || strings.Contains(name, "\\") {
		return "", false
	}
	return filepath.Join(m.dir, name), true
}

// Delete removes the file behind publicPath. It never fails: OS errors are logged and reported as DeleteFailed.
func (m *Manager) Delete(publicPath string) DeleteResult {
	fp, ok := m.diskPath(publicPath)
	if !ok {
		return DeleteSkipped
	}

	fi, err := m.fs.Stat(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return DeleteMissing
		}
		m.logFailure(publicPath, err)
		return DeleteFailed
	}
	if fi.IsDir() {
		return DeleteSkipped
	}
	if err = m.fs.Remove(fp); err != nil {
		m.logFailure(publicPath, err)
		return DeleteFailed
	}
	return Deleted
}

func (m *Manager) logFailure(publicPath string, err error) {
	if m.logger != nil {
		m.logger.Warn(fmt.Sprintf("deleting upload %s: %v", publicPath, err), err)
	}
}
