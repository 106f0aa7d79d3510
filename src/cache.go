package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// cacheDirName is skipped by CollectPhotos
const cacheDirName = ".photo-report-cache"

// ErrCacheClosed is returned by Put once Close has been called
var ErrCacheClosed = errors.New("cache closed")

type cacheWriteRequest struct {
	path    string
	size    int64
	modTime time.Time
	tags    []byte
}

// Cache stores raw tags per file so unchanged photos are not decoded again
type Cache struct {
	db         *sql.DB
	log        *logrus.Entry
	writeChan  chan cacheWriteRequest
	writerDone sync.WaitGroup

	// mu guards closed and sends on writeChan
	mu     sync.Mutex
	closed bool
}

// ReportRecord is one row of report history
type ReportRecord struct {
	RunID      string
	SourceDir  string
	OutputPath string
	Photos     int
	CreatedAt  time.Time
}

// OpenCache opens or creates the cache database under baseDir
func OpenCache(baseDir string, log *logrus.Logger) (*Cache, error) {
	cacheDir := filepath.Join(baseDir, cacheDirName)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout to 5 seconds (retry instead of failing immediately)
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		path TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		tags TEXT NOT NULL,
		processed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mod_time ON photos(mod_time);
	CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT PRIMARY KEY,
		source_dir TEXT NOT NULL,
		output_path TEXT NOT NULL,
		photos INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	cache := &Cache{
		db:        db,
		log:       log.WithField("component", "cache"),
		writeChan: make(chan cacheWriteRequest, 1000),
	}

	// Single writer goroutine serializes all photo writes
	cache.writerDone.Add(1)
	go cache.writerLoop()

	return cache, nil
}

func (c *Cache) writerLoop() {
	defer c.writerDone.Done()

	for req := range c.writeChan {
		c.writeToDatabase(req)
	}
}

// Close flushes pending writes and closes the database. Readers still
// running get ErrCacheClosed from Put.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.writeChan)
	c.mu.Unlock()

	c.writerDone.Wait()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the cached tags if path is unchanged since it was stored
func (c *Cache) Get(path string, size int64, modTime time.Time) (map[string]string, bool) {
	var raw string
	err := c.db.QueryRow(`
		SELECT tags FROM photos
		WHERE path = ? AND size = ? AND mod_time = ?
	`, path, size, modTime.UnixNano()).Scan(&raw)
	if err != nil {
		return nil, false
	}

	tags := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, false
	}
	return tags, true
}

// Put queues tags for writing (non-blocking). The tags are encoded
// immediately, so the caller may modify the map afterwards.
func (c *Cache) Put(path string, size int64, modTime time.Time, tags map[string]string) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}

	select {
	case c.writeChan <- cacheWriteRequest{path: path, size: size, modTime: modTime, tags: data}:
		return nil
	default:
		return fmt.Errorf("cache write queue full")
	}
}

func (c *Cache) writeToDatabase(req cacheWriteRequest) {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO photos (path, size, mod_time, tags, processed_at)
		VALUES (?, ?, ?, ?, ?)
	`, req.path, req.size, req.modTime.UnixNano(), string(req.tags), time.Now().Unix())

	if err != nil {
		// Cache is best-effort
		c.log.WithError(err).WithField("path", req.path).Warn("cache write failed")
	}
}

// Count returns the number of cached photos
func (c *Cache) Count() (total int64) {
	c.db.QueryRow("SELECT COUNT(*) FROM photos").Scan(&total)
	return
}

// PruneDeleted removes entries under baseDir whose files were not seen in the last scan
func (c *Cache) PruneDeleted(baseDir string, validPaths map[string]bool) (int64, error) {
	prefix := strings.TrimSuffix(baseDir, string(filepath.Separator)) + string(filepath.Separator)
	rows, err := c.db.Query("SELECT path FROM photos WHERE substr(path, 1, ?) = ?", len(prefix), prefix)
	if err != nil {
		return 0, err
	}

	var toDelete []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			continue
		}
		if !validPaths[path] {
			toDelete = append(toDelete, path)
		}
	}
	rows.Close()

	if len(toDelete) == 0 {
		return 0, nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("DELETE FROM photos WHERE path = ?")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, path := range toDelete {
		if _, err := stmt.Exec(path); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return int64(len(toDelete)), nil
}

// RecordReport stores a generated report in the history table
func (c *Cache) RecordReport(summary ReportSummary, outputPath string) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO reports (run_id, source_dir, output_path, photos, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, summary.RunID, summary.SourceDir, outputPath, summary.Photos, summary.GeneratedAt.Unix())
	return err
}

// RecentReports returns up to limit reports, newest first
func (c *Cache) RecentReports(limit int) ([]ReportRecord, error) {
	rows, err := c.db.Query(`
		SELECT run_id, source_dir, output_path, photos, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		var (
			r       ReportRecord
			created int64
		)
		if err := rows.Scan(&r.RunID, &r.SourceDir, &r.OutputPath, &r.Photos, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
