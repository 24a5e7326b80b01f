package logging

import (
	"fmt"
	"os"
	"sync"
)

// rotatingFile is a size-based rotating log file: once the current file
// exceeds maxSize bytes, it's renamed path.N -> path.N+1 (oldest beyond
// keep discarded) and a fresh file is opened at path. No library in the
// retrieved example pack does log rotation, so this is a direct, narrow
// stdlib implementation rather than a pack-sourced one.
type rotatingFile struct {
	mu sync.Mutex

	path    string
	maxSize int64
	keep    int

	fsyncEvery int64
	sinceSync  int64

	f    *os.File
	size int64
}

func openRotatingFile(path string, maxSize int64, keep int, fsyncEvery int64) (*rotatingFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if keep < 1 {
		keep = 1
	}
	return &rotatingFile{
		path:       path,
		maxSize:    maxSize,
		keep:       keep,
		fsyncEvery: fsyncEvery,
		f:          f,
		size:       info.Size(),
	}, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSize > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := r.f.Write(p)
	r.size += int64(n)
	r.sinceSync += int64(n)
	if err == nil && r.fsyncEvery > 0 && r.sinceSync >= r.fsyncEvery {
		err = r.f.Sync()
		r.sinceSync = 0
	}
	return n, err
}

func (r *rotatingFile) rotateLocked() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	for i := r.keep - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", r.path, i)
		dst := fmt.Sprintf("%s.%d", r.path, i+1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
	if _, err := os.Stat(r.path); err == nil {
		_ = os.Rename(r.path, r.path+".1")
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	r.f = f
	r.size = 0
	return nil
}

func (r *rotatingFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Sync()
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
