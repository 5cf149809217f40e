package ledger

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileLedger keeps one event id per line in an append-only text file.
// The file format is shared with older deployments that wrote the same log.
// Mark holds an exclusive advisory lock on the file across the lookup and the
// append, so workers on one host sharing the path never both mark an id.
// Advisory locks are not reliable on network filesystems; use the sql or
// redis backend when workers span hosts.
type FileLedger struct {
	path string
	mu   sync.RWMutex
}

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) Path() string { return l.path }

func (l *FileLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return false, err
	}
	defer unlockFile(f)
	return contains(f, id)
}

func (l *FileLedger) Mark(ctx context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	if strings.ContainsAny(id, "\r\n") {
		return false, errors.New("event id contains a line break")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return false, err
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o640)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return false, err
	}
	defer unlockFile(f)

	found, err := contains(f, id)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		return false, err
	}
	if err := f.Sync(); err != nil {
		return false, err
	}
	return true, nil
}

func contains(f *os.File, id string) (bool, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == id {
			return true, nil
		}
	}
	return false, scanner.Err()
}
