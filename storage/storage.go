package storage

import "errors"

// ErrNotFound is returned when the named file does not exist in the store
var ErrNotFound = errors.New("file not found")

// Store abstracts the staging area for uploaded import files.
// ReadLines streams: the callback sees one line at a time so large files
// never get loaded into memory.
type Store interface {
	Save(name string, data []byte) error
	ReadLines(name string, fn func(line string) error) error
	Delete(name string) error
	Exists(name string) bool
}
