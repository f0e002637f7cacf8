package hotrestart

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the pure-Go substitute for the shared-memory region spec.md §6
// describes ("persisted state layout"): original_start_time, last-flushed
// stat values, and per-worker liveness, all readable by the next restart
// epoch even after a hard crash of this one.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) a SQLite database at path shared
// across restart epochs of one logical server.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("hotrestart: open store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS server_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("hotrestart: create schema: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS worker_liveness (
			worker_id  INTEGER PRIMARY KEY,
			touched_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("hotrestart: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const keyOriginalStartTime = "original_start_time"
const keyLastFlushedMemory = "last_flushed_memory_allocated"
const keyLastFlushedConns = "last_flushed_num_connections"

// OriginalStartTime returns the persisted start time of the oldest
// ancestor in this restart chain, or zero if none has been recorded yet
// (i.e. this is epoch 0 and nothing has run before it).
func (s *Store) OriginalStartTime() (time.Time, error) {
	var unixNano int64
	err := s.getInt(keyOriginalStartTime, &unixNano)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, unixNano), nil
}

// SetOriginalStartTime persists t. Called once, by whichever epoch first
// starts with no parent to inherit it from.
func (s *Store) SetOriginalStartTime(t time.Time) error {
	return s.setInt(keyOriginalStartTime, t.UnixNano())
}

// LastFlushedStats returns the most recently flushed (memory_allocated,
// num_connections) pair, surviving across a crash between flushes.
func (s *Store) LastFlushedStats() (memoryAllocated uint64, numConnections int, err error) {
	var mem, conns int64
	if err := s.getInt(keyLastFlushedMemory, &mem); err != nil && err != sql.ErrNoRows {
		return 0, 0, err
	}
	if err := s.getInt(keyLastFlushedConns, &conns); err != nil && err != sql.ErrNoRows {
		return 0, 0, err
	}
	return uint64(mem), int(conns), nil
}

// SetLastFlushedStats persists the pair the stats-flush timer most
// recently published.
func (s *Store) SetLastFlushedStats(memoryAllocated uint64, numConnections int) error {
	if err := s.setInt(keyLastFlushedMemory, int64(memoryAllocated)); err != nil {
		return err
	}
	return s.setInt(keyLastFlushedConns, int64(numConnections))
}

// TouchWorker records that worker id is alive as of now. Read back by a
// successor process that wants to know which workers of a crashed parent
// were still live at the time of the crash.
func (s *Store) TouchWorker(id int) error {
	_, err := s.db.Exec(`
		INSERT INTO worker_liveness (worker_id, touched_at) VALUES (?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET touched_at = excluded.touched_at`,
		id, time.Now().UnixNano())
	return err
}

// WorkerLastTouch returns when worker id last called TouchWorker.
func (s *Store) WorkerLastTouch(id int) (time.Time, error) {
	var unixNano int64
	row := s.db.QueryRow(`SELECT touched_at FROM worker_liveness WHERE worker_id = ?`, id)
	if err := row.Scan(&unixNano); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return time.Unix(0, unixNano), nil
}

func (s *Store) getInt(key string, dst *int64) error {
	row := s.db.QueryRow(`SELECT value FROM server_state WHERE key = ?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		return err
	}
	_, err := fmt.Sscan(v, dst)
	return err
}

func (s *Store) setInt(key string, v int64) error {
	_, err := s.db.Exec(`
		INSERT INTO server_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, fmt.Sprint(v))
	return err
}
