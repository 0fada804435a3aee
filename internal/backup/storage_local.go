package backup

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LocalStore is the artifact directory. Every method takes an artifact name,
// never a path, and validates it before touching the filesystem.
type LocalStore struct {
	dir         string
	permissions os.FileMode
}

// NewLocalStore creates a store rooted at dir
func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &LocalStore{dir: dir, permissions: 0755}
}

// Dir returns the store directory
func (ls *LocalStore) Dir() string {
	return ls.dir
}

// EnsureDir creates the store directory if it does not exist
func (ls *LocalStore) EnsureDir() error {
	if err := os.MkdirAll(ls.dir, ls.permissions); err != nil {
		return NewStorageError("failed to create backup directory", err).WithContext("dir", ls.dir)
	}
	return nil
}

// Path resolves a validated artifact name inside the store
func (ls *LocalStore) Path(name string) (string, error) {
	if err := ValidateArtifactName(name); err != nil {
		return "", err
	}
	return filepath.Join(ls.dir, name), nil
}

// Create writes data under name. It fails with fs.ErrExist if the name is
// already taken so the caller can pick a new one.
func (ls *LocalStore) Create(name string, data []byte) (*Artifact, error) {
	path, err := ls.Path(name)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		return nil, NewStorageError("failed to create backup file", err).WithContext("name", name)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return nil, NewStorageError("failed to write backup file", err).WithContext("name", name)
	}
	if err := file.Close(); err != nil {
		return nil, NewStorageError("failed to close backup file", err).WithContext("name", name)
	}

	return ls.Stat(name)
}

// Read returns the raw bytes of an artifact
func (ls *LocalStore) Read(name string) ([]byte, error) {
	path, err := ls.Path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewNotFoundError("backup file not found", err).WithContext("name", name)
		}
		return nil, NewStorageError("failed to read backup file", err).WithContext("name", name)
	}
	return data, nil
}

// Stat describes one artifact, including the header flags when present
func (ls *LocalStore) Stat(name string) (*Artifact, error) {
	path, err := ls.Path(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewNotFoundError("backup file not found", err).WithContext("name", name)
		}
		return nil, NewStorageError("failed to stat backup file", err).WithContext("name", name)
	}

	artifact := &Artifact{
		Name:      name,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}
	ls.readHeader(artifact)
	return artifact, nil
}

// Exists reports whether an artifact with name is stored
func (ls *LocalStore) Exists(name string) bool {
	_, err := ls.Stat(name)
	return err == nil
}

// Delete removes an artifact
func (ls *LocalStore) Delete(name string) error {
	path, err := ls.Path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewNotFoundError("backup file not found", err).WithContext("name", name)
		}
		return NewStorageError("failed to delete backup file", err).WithContext("name", name)
	}
	return nil
}

// List returns every artifact in the store, newest first by modification
// time. Files that do not match the naming pattern are ignored. A missing
// directory lists as empty.
func (ls *LocalStore) List() ([]*Artifact, error) {
	entries, err := os.ReadDir(ls.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*Artifact{}, nil
		}
		return nil, NewStorageError("failed to read backup directory", err).WithContext("dir", ls.dir)
	}

	artifacts := make([]*Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsArtifactName(entry.Name()) {
			continue
		}
		artifact, err := ls.Stat(entry.Name())
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].Name > artifacts[j].Name
		}
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

// HealthCheck verifies that the store directory is writable
func (ls *LocalStore) HealthCheck() error {
	if err := ls.EnsureDir(); err != nil {
		return err
	}

	testFile := filepath.Join(ls.dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("health_check"), 0644); err != nil {
		return NewStorageError("backup directory is not writable", err)
	}
	_ = os.Remove(testFile)
	return nil
}

func (ls *LocalStore) readHeader(artifact *Artifact) {
	file, err := os.Open(artifact.Path)
	if err != nil {
		return
	}
	defer file.Close()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(file, buf); err != nil {
		return
	}
	if header, ok := Inspect(buf); ok {
		artifact.Compressed = header.Compressed
		artifact.Encrypted = header.Encrypted
		if header.Compressed {
			artifact.Algorithm = header.Algorithm
		}
	}
}
