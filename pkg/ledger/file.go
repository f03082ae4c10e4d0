package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileLedger persists published pairs as "destination,hash" lines in an
// append-only file. The whole file is loaded into memory at open;
// malformed lines are logged and skipped so an old or damaged file never
// blocks publishing.
type FileLedger struct {
	mu     sync.Mutex
	file   *os.File
	seen   map[pair]struct{}
	logger *slog.Logger
}

// OpenFileLedger loads the ledger at path, creating it if needed. A
// missing file means nothing has been published yet.
func OpenFileLedger(path string, logger *slog.Logger) (*FileLedger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	seen := make(map[pair]struct{})
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Nothing published yet.
	case err != nil:
		return nil, fmt.Errorf("read ledger: %w", err)
	default:
		for i, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			destination, hash, ok := strings.Cut(line, ",")
			destination = strings.TrimSpace(destination)
			hash = strings.TrimSpace(hash)
			if !ok || destination == "" || hash == "" {
				logger.Warn("skipping malformed ledger line", "path", path, "line", i+1)
				continue
			}
			seen[pair{destination, hash}] = struct{}{}
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger for append: %w", err)
	}
	logger.Debug("ledger loaded", "path", path, "entries", len(seen))
	return &FileLedger{file: file, seen: seen, logger: logger}, nil
}

func (l *FileLedger) Contains(destinationID, contentHash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[pair{destinationID, contentHash}]
	return ok
}

// Record appends the pair and then updates the in-memory set, so a
// just-recorded pair is visible to every subsequent Contains in-process
// and survives to the next process start.
func (l *FileLedger) Record(destinationID, contentHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := pair{destinationID, contentHash}
	if _, ok := l.seen[p]; ok {
		return nil
	}
	if _, err := fmt.Fprintf(l.file, "%s,%s\n", destinationID, contentHash); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	l.seen[p] = struct{}{}
	return nil
}

// Len reports the number of recorded pairs.
func (l *FileLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *FileLedger) Close() error {
	return l.file.Close()
}
