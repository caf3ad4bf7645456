package attachment

import (
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warnCounter struct{ warnings int }

func (l *warnCounter) Debug(string, ...interface{}) {}
func (l *warnCounter) Info(string, ...interface{})  {}
func (l *warnCounter) Warn(string, ...interface{})  { l.warnings++ }
func (l *warnCounter) Error(string, ...interface{}) {}
func (l *warnCounter) Fatal(string, ...interface{}) {}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "photo.jpg", want: "photo.jpg"},
		{name: "empty", in: "", want: "upload"},
		{name: "dot", in: ".", want: "upload"},
		{name: "dotdot", in: "..", want: "upload"},
		{name: "slashes", in: "../../etc/passwd", want: ".._.._etc_passwd"},
		{name: "backslashes", in: `C:\Users\me\pic.png`, want: "C:_Users_me_pic.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestManager_Store(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs, "static/uploads", nil)

	p1, err := m.Store(strings.NewReader("first"), "photo.jpg")
	require.NoError(t, err)
	p2, err := m.Store(strings.NewReader("second"), "photo.jpg")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^/uploads/[0-9a-f]{32}_photo\.jpg$`), p1)
	assert.NotEqual(t, p1, p2, "same original name must map to distinct files")

	data, err := afero.ReadFile(fs, "static/uploads/"+strings.TrimPrefix(p1, PublicPrefix))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	p3, err := m.Store(strings.NewReader("x"), "../evil.sh")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p3, "_.._evil.sh"))
	exists, _ := afero.Exists(fs, "static/uploads/"+strings.TrimPrefix(p3, PublicPrefix))
	assert.True(t, exists, "upload must stay inside the uploads dir")
}

func TestManager_Delete(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger := &warnCounter{}
	m := NewManager(fs, "uploads", logger)

	stored, err := m.Store(strings.NewReader("img"), "a.png")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "secret.txt", []byte("s"), 0o644))

	tests := []struct {
		name string
		path string
		want DeleteResult
	}{
		{name: "empty path", path: "", want: DeleteSkipped},
		{name: "outside prefix", path: "/static/a.png", want: DeleteSkipped},
		{name: "traversal", path: "/uploads/../secret.txt", want: DeleteSkipped},
		{name: "prefix only", path: "/uploads/", want: DeleteSkipped},
		{name: "missing", path: "/uploads/nothing.png", want: DeleteMissing},
		{name: "deleted", path: stored, want: Deleted},
		{name: "already deleted", path: stored, want: DeleteMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Delete(tt.path))
		})
	}

	exists, _ := afero.Exists(fs, "secret.txt")
	assert.True(t, exists)
	assert.Zero(t, logger.warnings)
}

func TestManager_DeleteFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	stored, err := NewManager(base, "uploads", nil).Store(strings.NewReader("img"), "a.png")
	require.NoError(t, err)

	logger := &warnCounter{}
	m := NewManager(afero.NewReadOnlyFs(base), "uploads", logger)

	assert.Equal(t, DeleteFailed, m.Delete(stored))
	assert.Equal(t, 1, logger.warnings)

	exists, _ := afero.Exists(base, "uploads/"+strings.TrimPrefix(stored, PublicPrefix))
	assert.True(t, exists)
}
