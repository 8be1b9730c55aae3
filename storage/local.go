package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore keeps uploads in a single directory on local disk
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalStore{Dir: dir}, nil
}

func (s *LocalStore) path(name string) string {
	// Uploads are stored flat under uuid names; strip any path components
	return filepath.Join(s.Dir, filepath.Base(name))
}

func (s *LocalStore) Save(name string, data []byte) error {
	return os.WriteFile(s.path(name), data, 0o644)
}

func (s *LocalStore) ReadLines(name string, fn func(line string) error) error {
	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Allow long rows; the default 64K token limit is too small for some exports
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *LocalStore) Delete(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStore) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}
