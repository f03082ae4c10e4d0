package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLedger stores published pairs in an embedded database. Like the
// file backend, the full record set is loaded at open so Contains never
// touches the database on the hot path.
type SQLiteLedger struct {
	mu   sync.Mutex
	db   *sql.DB
	seen map[pair]struct{}
}

// OpenSQLiteLedger opens (and if necessary creates) the database at dbPath.
func OpenSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	l := &SQLiteLedger{db: db, seen: make(map[pair]struct{})}
	if err := l.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := l.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// init creates the database schema.
func (l *SQLiteLedger) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS published (
		destination_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		published_at INTEGER,
		PRIMARY KEY (destination_id, content_hash)
	);
	`
	_, err := l.db.Exec(schema)
	return err
}

// load populates the in-memory set from the table.
func (l *SQLiteLedger) load() error {
	rows, err := l.db.Query(`SELECT destination_id, content_hash FROM published`)
	if err != nil {
		return fmt.Errorf("query published pairs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var destination, hash string
		if err := rows.Scan(&destination, &hash); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		l.seen[pair{destination, hash}] = struct{}{}
	}
	return rows.Err()
}

func (l *SQLiteLedger) Contains(destinationID, contentHash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[pair{destinationID, contentHash}]
	return ok
}

func (l *SQLiteLedger) Record(destinationID, contentHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := pair{destinationID, contentHash}
	if _, ok := l.seen[p]; ok {
		return nil
	}
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO published (destination_id, content_hash, published_at) VALUES (?, ?, ?)`,
		destinationID, contentHash, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record publish: %w", err)
	}
	l.seen[p] = struct{}{}
	return nil
}

// Len reports the number of recorded pairs.
func (l *SQLiteLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
