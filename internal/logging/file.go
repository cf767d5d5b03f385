package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RotateOptions bounds the size of the active log file and the number of
// numbered backups (server.log.1, server.log.2, ...) kept next to it.
type RotateOptions struct {
	MaxBytes   int64
	MaxBackups int
}

// DefaultRotateOptions keeps five 10 MiB generations.
var DefaultRotateOptions = RotateOptions{MaxBytes: 10 << 20, MaxBackups: 5}

// RotatingFile is an io.WriteCloser that rolls the file over once a write
// would push it past MaxBytes.
type RotatingFile struct {
	mu   sync.Mutex
	path string
	opts RotateOptions
	f    *os.File
	size int64
}

func OpenRotatingFile(path string, opts RotateOptions) (*RotatingFile, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be positive, got %d", opts.MaxBytes)
	}
	opts.MaxBackups = max(opts.MaxBackups, 0)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	rf := &RotatingFile{path: path, opts: opts}
	if err := rf.open(os.O_APPEND); err != nil {
		return nil, err
	}
	if rf.size > opts.MaxBytes {
		if err := rf.rotate(); err != nil {
			_ = rf.f.Close()
			return nil, err
		}
	}
	return rf, nil
}

func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return 0, os.ErrClosed
	}
	// a single oversized record still lands in a fresh file
	if rf.size > 0 && rf.size+int64(len(p)) > rf.opts.MaxBytes {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rf.f.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return nil
	}
	err := rf.f.Close()
	rf.f = nil
	return err
}

func (rf *RotatingFile) open(mode int) error {
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	rf.f = f
	rf.size = 0
	if info, err := f.Stat(); err == nil {
		rf.size = info.Size()
	}
	return nil
}

// rotate must be called with mu held.
func (rf *RotatingFile) rotate() error {
	if rf.f != nil {
		if err := rf.f.Close(); err != nil {
			return err
		}
		rf.f = nil
	}

	if rf.opts.MaxBackups == 0 {
		if err := removeIfExists(rf.path); err != nil {
			return err
		}
		return rf.open(os.O_TRUNC)
	}

	if err := removeIfExists(rf.backup(rf.opts.MaxBackups)); err != nil {
		return err
	}
	for i := rf.opts.MaxBackups - 1; i >= 0; i-- {
		src := rf.backup(i)
		if err := os.Rename(src, rf.backup(i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return rf.open(os.O_TRUNC)
}

// backup(0) is the active file.
func (rf *RotatingFile) backup(n int) string {
	if n == 0 {
		return rf.path
	}
	return fmt.Sprintf("%s.%d", rf.path, n)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
