// Package cache implements the persistent Cache Store: a single SQLite
// database file backing the file processor's content-addressed cache,
// with a pooled-reader/single-writer split, batched writes, integrity
// recovery, and size-bounded eviction.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/samuraizer-go/internal/cachestate"
	"github.com/standardbeagle/samuraizer-go/internal/debug"
	"github.com/standardbeagle/samuraizer-go/internal/model"
)

// FileName is the cache database's well-known filename under a cache
// directory, per spec §6.2.
const FileName = ".repo_structure_cache.db"

// BusyTimeout is the minimum busy-wait timeout for SQLite connections.
const BusyTimeout = 20 * time.Second

const (
	minBatchSize    = 100
	maxBatchWait    = time.Second
	evictionTargetPct = 0.75
)

const schema = `
CREATE TABLE IF NOT EXISTS cache (
	file_path TEXT PRIMARY KEY,
	file_hash TEXT NULL,
	hash_algorithm TEXT NULL,
	file_info TEXT NOT NULL,
	size INTEGER NOT NULL,
	mtime REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hash_algorithm ON cache(hash_algorithm);
`

type writeRequest struct {
	record model.CacheRecord
}

// Store is the persistent cache backing the file processor. It is safe
// for concurrent use by multiple goroutines.
type Store struct {
	path         string
	poolSize     int
	maxSizeBytes int64
	bus          *cachestate.Bus

	mu sync.RWMutex // guards db
	db *sql.DB

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     []writeRequest
	pending   int
	stopped   bool

	wg sync.WaitGroup
}

// Open creates or opens the cache database at dbPath (the full path to
// the .repo_structure_cache.db file) with a connection pool of
// min(3, workerThreads) connections (at least 1), subscribing to bus for
// enable/disable transitions.
func Open(dbPath string, workerThreads int, maxSizeBytes int64, bus *cachestate.Bus) (*Store, error) {
	poolSize := workerThreads
	if poolSize > 3 {
		poolSize = 3
	}
	if poolSize < 1 {
		poolSize = 1
	}

	s := &Store{
		path:         dbPath,
		poolSize:     poolSize,
		maxSizeBytes: maxSizeBytes,
		bus:          bus,
	}
	s.queueCond = sync.NewCond(&s.queueMu)

	if bus != nil && bus.Disabled() {
		s.stopped = true
	} else {
		if err := s.openLocked(); err != nil {
			return nil, err
		}
		s.startWriter()
	}

	if bus != nil {
		bus.Subscribe(s.onStateChange)
	}

	return s, nil
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, BusyTimeout.Milliseconds())
}

func (s *Store) openLocked() error {
	if err := s.openWithIntegrityCheck(); err != nil {
		return err
	}
	return nil
}

func (s *Store) openWithIntegrityCheck() error {
	db, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(s.poolSize)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("create cache schema: %w", err)
	}

	ok, err := integrityOK(db)
	if err != nil || !ok {
		debug.LogCache("cache integrity check failed for %s: %v; quarantining", s.path, err)
		db.Close()
		if qerr := s.quarantine(); qerr != nil {
			return fmt.Errorf("quarantine corrupt cache: %w", qerr)
		}
		db, err = sql.Open("sqlite", dsn(s.path))
		if err != nil {
			return fmt.Errorf("reopen cache db after quarantine: %w", err)
		}
		db.SetMaxOpenConns(s.poolSize)
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return fmt.Errorf("recreate cache schema: %w", err)
		}
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	return nil
}

func integrityOK(db *sql.DB) (bool, error) {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return false, err
	}
	return result == "ok", nil
}

func (s *Store) quarantine() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	quarantined := fmt.Sprintf("%s.corrupt_%d", s.path, time.Now().Unix())
	return os.Rename(s.path, quarantined)
}

// Get looks up a record by absolute resolved path. ok is false on a miss,
// a disabled cache, or an I/O error (errors are logged, not propagated,
// per spec §7's cache error policy).
func (s *Store) Get(filePath string) (model.CacheRecord, bool) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return model.CacheRecord{}, false
	}

	var rec model.CacheRecord
	var fileHash, hashAlgorithm sql.NullString
	var infoJSON string

	row := db.QueryRow(`SELECT file_path, file_hash, hash_algorithm, file_info, size, mtime FROM cache WHERE file_path = ?`, filePath)
	if err := row.Scan(&rec.FilePath, &fileHash, &hashAlgorithm, &infoJSON, &rec.Size, &rec.Mtime); err != nil {
		if err != sql.ErrNoRows {
			debug.LogCache("cache read error for %s: %v", filePath, err)
		}
		return model.CacheRecord{}, false
	}

	if fileHash.Valid {
		v := fileHash.String
		rec.ContentHash = &v
	}
	if hashAlgorithm.Valid {
		v := hashAlgorithm.String
		rec.HashAlgorithm = &v
	}
	if err := json.Unmarshal([]byte(infoJSON), &rec.FileInfo); err != nil {
		debug.LogCache("cache decode error for %s: %v", filePath, err)
		return model.CacheRecord{}, false
	}

	return rec, true
}

// Put enqueues a record for asynchronous batched write. It is a no-op
// when the cache is disabled.
func (s *Store) Put(record model.CacheRecord) {
	s.queueMu.Lock()
	if s.stopped {
		s.queueMu.Unlock()
		return
	}
	s.queue = append(s.queue, writeRequest{record: record})
	s.pending++
	s.queueCond.Signal()
	s.queueMu.Unlock()
}

// Flush blocks until the write queue drains to zero pending writes or the
// timeout elapses, returning whether drainage completed.
func (s *Store) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timedOut := make(chan struct{})
	stopTimer := make(chan struct{})
	go func() {
		select {
		case <-time.After(time.Until(deadline)):
			s.queueMu.Lock()
			close(timedOut)
			s.queueCond.Broadcast()
			s.queueMu.Unlock()
		case <-stopTimer:
		}
	}()
	defer close(stopTimer)

	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for s.pending > 0 && !s.stopped {
		select {
		case <-timedOut:
			return s.pending == 0
		default:
		}
		s.queueCond.Wait()
	}
	return s.pending == 0
}

func (s *Store) startWriter() {
	s.queueMu.Lock()
	s.stopped = false
	s.queueMu.Unlock()

	s.wg.Add(1)
	go s.writerLoop()
}

func (s *Store) writerLoop() {
	defer s.wg.Done()

	for {
		batch, stop := s.collectBatch()
		if len(batch) > 0 {
			s.applyBatch(batch)
		}
		if stop {
			return
		}
	}
}

// collectBatch waits for at least one queued write, then drains up to
// minBatchSize items or until maxBatchWait has elapsed since the first
// item arrived, whichever comes first.
func (s *Store) collectBatch() (batch []writeRequest, stop bool) {
	s.queueMu.Lock()

	for len(s.queue) == 0 {
		if s.stopped {
			s.queueMu.Unlock()
			return nil, true
		}
		s.queueCond.Wait()
	}
	s.queueMu.Unlock()

	deadlineHit := make(chan struct{})
	stopTimer := make(chan struct{})
	go func() {
		select {
		case <-time.After(maxBatchWait):
			s.queueMu.Lock()
			close(deadlineHit)
			s.queueCond.Broadcast()
			s.queueMu.Unlock()
		case <-stopTimer:
		}
	}()
	defer close(stopTimer)

	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for len(s.queue) < minBatchSize && !s.stopped {
		select {
		case <-deadlineHit:
			goto drain
		default:
		}
		s.queueCond.Wait()
	}
drain:
	n := len(s.queue)
	if n > minBatchSize {
		n = minBatchSize
	}
	batch = s.queue[:n]
	s.queue = s.queue[n:]
	return batch, s.stopped && len(s.queue) == 0
}

func (s *Store) applyBatch(batch []writeRequest) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	if db != nil {
		if err := s.writeBatch(db, batch); err != nil {
			debug.LogCache("cache write batch failed (%d records): %v", len(batch), err)
		}
	}

	s.queueMu.Lock()
	s.pending -= len(batch)
	if s.pending < 0 {
		s.pending = 0
	}
	s.queueCond.Broadcast()
	s.queueMu.Unlock()
}

func (s *Store) writeBatch(db *sql.DB, batch []writeRequest) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cache (file_path, file_hash, hash_algorithm, file_info, size, mtime)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_hash = excluded.file_hash,
			hash_algorithm = excluded.hash_algorithm,
			file_info = excluded.file_info,
			size = excluded.size,
			mtime = excluded.mtime
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, wr := range batch {
		infoJSON, err := json.Marshal(wr.record.FileInfo)
		if err != nil {
			continue
		}
		var hashVal, algoVal any
		if wr.record.ContentHash != nil {
			hashVal = *wr.record.ContentHash
		}
		if wr.record.HashAlgorithm != nil {
			algoVal = *wr.record.HashAlgorithm
		}
		if _, err := stmt.Exec(wr.record.FilePath, hashVal, algoVal, string(infoJSON), wr.record.Size, wr.record.Mtime); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// onStateChange reacts to Cache State Bus transitions: enabled→disabled
// discards queued writes (a batch already being written is allowed to
// finish) and closes the pool; disabled→enabled reopens it.
func (s *Store) onStateChange(disabled bool) {
	if disabled {
		s.stopWriterAndClose()
	} else {
		if err := s.openLocked(); err != nil {
			debug.LogCache("failed to reopen cache after re-enable: %v", err)
			return
		}
		s.startWriter()
	}
}

func (s *Store) stopWriterAndClose() {
	s.queueMu.Lock()
	s.stopped = true
	s.queue = nil
	s.pending = 0
	s.queueCond.Broadcast()
	s.queueMu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.mu.Unlock()
}

// Close stops the writer and closes the underlying database connections.
func (s *Store) Close() error {
	s.stopWriterAndClose()
	return nil
}

// DiskSize returns the total size in bytes of the database file and its
// WAL/SHM siblings.
func (s *Store) DiskSize() int64 {
	var total int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if info, err := os.Stat(s.path + suffix); err == nil {
			total += info.Size()
		}
	}
	return total
}

// EvictIfNeeded deletes the oldest records by mtime ascending until the
// projected on-disk size is at or below evictionTargetPct of the limit,
// then compacts the database. It is a no-op while the cache is disabled
// or under the limit.
func (s *Store) EvictIfNeeded() error {
	if s.maxSizeBytes <= 0 {
		return nil
	}
	if s.DiskSize() <= s.maxSizeBytes {
		return nil
	}

	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil
	}

	type row struct {
		path  string
		mtime float64
		size  int64
	}
	rows, err := db.Query(`SELECT file_path, mtime, size FROM cache ORDER BY mtime ASC`)
	if err != nil {
		return fmt.Errorf("query for eviction: %w", err)
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.path, &r.mtime, &r.size); err != nil {
			rows.Close()
			return err
		}
		all = append(all, r)
	}
	rows.Close()

	sort.Slice(all, func(i, j int) bool { return all[i].mtime < all[j].mtime })

	target := int64(float64(s.maxSizeBytes) * evictionTargetPct)
	projected := s.DiskSize()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	del, err := tx.Prepare(`DELETE FROM cache WHERE file_path = ?`)
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, r := range all {
		if projected <= target {
			break
		}
		if _, err := del.Exec(r.path); err != nil {
			del.Close()
			tx.Rollback()
			return err
		}
		projected -= r.size
	}
	del.Close()
	if err := tx.Commit(); err != nil {
		return err
	}

	if _, err := db.Exec("VACUUM"); err != nil {
		debug.LogCache("vacuum after eviction failed: %v", err)
	}
	return nil
}

// CachePath returns the well-known cache database path under dir.
func CachePath(dir string) string {
	return filepath.Join(dir, FileName)
}
