//go:build windows

package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"iresolve/internal/errors"
)

// staleLockAge is how old a leftover lock file must be before it is taken over.
const staleLockAge = 10 * time.Minute

// Lock represents an exclusive lock on an index file.
// Windows has no flock; exclusive creation of the PID file stands in.
type Lock struct {
	path string
	file *os.File
}

// LockPath returns the lock file guarding indexPath.
func LockPath(indexPath string) string {
	return indexPath + ".lock"
}

// AcquireLock takes the exclusive writer lock for indexPath.
func AcquireLock(indexPath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	path := LockPath(indexPath)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if os.IsExist(err) {
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			_ = os.Remove(path)
			file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		}
	}
	if err != nil {
		if os.IsExist(err) {
			msg := "index is locked by another process"
			if content, readErr := os.ReadFile(path); readErr == nil && len(content) > 0 {
				msg = fmt.Sprintf("index is locked by another process (PID %s)", strings.TrimSpace(string(content)))
			}
			return nil, errors.New(errors.IndexLocked, msg, err)
		}
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release releases the lock and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}

	l.file.Close()
	os.Remove(l.path)
}
