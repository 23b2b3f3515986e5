package archive

import (
	"os"
	"path/filepath"
)

// Scratch is a per-version extraction directory. The sweep acquires one per
// package-version key and releases it on every exit path.
type Scratch struct {
	Dir string
}

// NewScratch creates root/key, wiping any leftovers from an interrupted run.
func NewScratch(root, key string) (*Scratch, error) {
	dir := filepath.Join(root, key)
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Scratch{Dir: dir}, nil
}

func (s *Scratch) Close() error {
	return os.RemoveAll(s.Dir)
}
