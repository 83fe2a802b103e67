package storage

import (
	"testing"

	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *FileStore {
	return NewFileStore(afero.NewMemMapFs(), "./Repository_Files")
}

func TestWriteAndRead(t *testing.T) {
	s := newTestStore()

	localPath, err := s.Write("hello", "src/main.go", []byte("package main"))
	require.NoError(t, err)
	assert.Equal(t, "Repository_Files/hello/src/main.go", localPath)

	data, err := s.Read(localPath)
	require.NoError(t, err)
	assert.Equal(t, "package main", string(data))

	// Rewrites replace the content in place.
	again, err := s.Write("hello", "src/main.go", []byte("package main // v2"))
	require.NoError(t, err)
	assert.Equal(t, localPath, again)

	data, err = s.Read(localPath)
	require.NoError(t, err)
	assert.Equal(t, "package main // v2", string(data))
}

func TestWriteNormalizesSeparators(t *testing.T) {
	s := newTestStore()

	localPath, err := s.Write("hello", `docs\intro.md`, []byte("# intro"))
	require.NoError(t, err)
	assert.Equal(t, "Repository_Files/hello/docs/intro.md", localPath)
}

func TestLocalPathRejectsTraversal(t *testing.T) {
	s := newTestStore()

	for _, name := range []string{"../secret", "a/../../b", "/etc/passwd", ""} {
		_, err := s.LocalPath("hello", name)
		assert.ErrorIs(t, err, entity.ErrUnexpectedPath, name)
	}

	_, err := s.LocalPath("..", "a.go")
	assert.ErrorIs(t, err, entity.ErrUnexpectedPath)
}

func TestRemove(t *testing.T) {
	s := newTestStore()

	localPath, err := s.Write("hello", "a.go", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove("hello", "a.go"))
	_, err = s.Read(localPath)
	assert.Error(t, err)

	// Removing twice is fine.
	require.NoError(t, s.Remove("hello", "a.go"))
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		root      string
		localPath string
		want      Location
		wantErr   bool
	}{
		{
			name:      "nested document",
			root:      "Repository_Files",
			localPath: "Repository_Files/hello/src/pkg/util.go",
			want:      Location{Collection: "hello", DocumentID: "src/pkg/util.go"},
		},
		{
			name:      "backslashes",
			root:      "./Repository_Files",
			localPath: `Repository_Files\hello\README.md`,
			want:      Location{Collection: "hello", DocumentID: "README.md"},
		},
		{
			name:      "absolute root",
			root:      "/var/lib/repoqa",
			localPath: "/var/lib/repoqa/hello/a.go",
			want:      Location{Collection: "hello", DocumentID: "a.go"},
		},
		{name: "outside root", root: "Repository_Files", localPath: "other/hello/a.go", wantErr: true},
		{name: "no document", root: "Repository_Files", localPath: "Repository_Files/hello", wantErr: true},
		{name: "escapes root", root: "Repository_Files", localPath: "Repository_Files/../hello/a.go", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.root, tt.localPath)
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrUnexpectedPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInvertsLocalPath(t *testing.T) {
	s := newTestStore()

	localPath, err := s.LocalPath("hello", "internal/app/app.go")
	require.NoError(t, err)

	loc, err := s.Resolve(localPath)
	require.NoError(t, err)
	assert.Equal(t, Location{Collection: "hello", DocumentID: "internal/app/app.go"}, loc)
}
