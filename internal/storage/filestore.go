package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/spf13/afero"
)

// Location is the collection mapping of a file in the content store.
type Location struct {
	Collection string
	DocumentID string
}

// FileStore keeps downloaded repository files under <root>/<repo>/<fileName>.
type FileStore struct {
	fs   afero.Fs
	root string
}

func NewFileStore(fs afero.Fs, root string) *FileStore {
	return &FileStore{
		fs:   fs,
		root: normalize(root),
	}
}

// NewOsFileStore returns a store on the local disk.
func NewOsFileStore(root string) *FileStore {
	return NewFileStore(afero.NewOsFs(), root)
}

func (s *FileStore) Root() string {
	return s.root
}

// LocalPath returns the normalized store path of a repository file.
func (s *FileStore) LocalPath(repo, fileName string) (string, error) {
	if err := checkSegment(repo); err != nil {
		return "", fmt.Errorf("%w: repo %q: %v", entity.ErrUnexpectedPath, repo, err)
	}

	name := strings.ReplaceAll(fileName, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: file name %q", entity.ErrUnexpectedPath, fileName)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: file name %q escapes the repository", entity.ErrUnexpectedPath, fileName)
		}
	}

	return path.Join(s.root, repo, path.Clean(name)), nil
}

// Write stores content atomically and returns the normalized local path.
// Rewriting the same file replaces it.
func (s *FileStore) Write(repo, fileName string, content []byte) (string, error) {
	localPath, err := s.LocalPath(repo, fileName)
	if err != nil {
		return "", err
	}

	dir := path.Dir(localPath)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", localPath, err)
	}

	if err := s.fs.Rename(tmpName, localPath); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("rename into %s: %w", localPath, err)
	}

	return localPath, nil
}

// Read returns the content at a local path produced by Write.
func (s *FileStore) Read(localPath string) ([]byte, error) {
	if _, err := s.Resolve(localPath); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, normalize(localPath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", localPath, err)
	}
	return data, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *FileStore) Remove(repo, fileName string) error {
	localPath, err := s.LocalPath(repo, fileName)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", localPath, err)
	}
	return nil
}

// Resolve maps a local path of this store to its collection location.
func (s *FileStore) Resolve(localPath string) (Location, error) {
	return ResolvePath(s.root, localPath)
}

// ResolvePath maps <root>/<repo>/<fileName> to collection repo and document
// id fileName. Any other shape is rejected with entity.ErrUnexpectedPath.
func ResolvePath(root, localPath string) (Location, error) {
	root = normalize(root)
	p := normalize(localPath)

	rel := p
	if root != "." {
		var ok bool
		rel, ok = strings.CutPrefix(p, root+"/")
		if !ok {
			return Location{}, fmt.Errorf("%w: %q is outside %q", entity.ErrUnexpectedPath, localPath, root)
		}
	}

	collection, docID, ok := strings.Cut(rel, "/")
	if !ok || docID == "" {
		return Location{}, fmt.Errorf("%w: %q has no repository directory", entity.ErrUnexpectedPath, localPath)
	}
	if err := checkSegment(collection); err != nil {
		return Location{}, fmt.Errorf("%w: %q: %v", entity.ErrUnexpectedPath, localPath, err)
	}
	if docID == ".." || strings.HasPrefix(docID, "../") {
		return Location{}, fmt.Errorf("%w: %q escapes the repository", entity.ErrUnexpectedPath, localPath)
	}

	return Location{Collection: collection, DocumentID: docID}, nil
}

func normalize(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

func checkSegment(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return fmt.Errorf("invalid name %q", s)
	case strings.ContainsAny(s, "/\\"):
		return fmt.Errorf("name %q contains a separator", s)
	}
	return nil
}
