package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS badges (
		unique_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mac_address TEXT UNIQUE,
		firmware BLOB,
		firmware_hash TEXT,
		selected_image_label TEXT,
		selected_image BLOB,
		selected_image_mime_type TEXT,
		selected_image_font TEXT,
		selected_image_color TEXT,
		selected_font_size INTEGER,
		selected_text_x INTEGER,
		selected_text_y INTEGER,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS gallery_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL UNIQUE,
		data BLOB NOT NULL,
		mime_type TEXT NOT NULL DEFAULT 'image/png',
		color TEXT NOT NULL DEFAULT 'black',
		font TEXT NOT NULL DEFAULT '',
		secret_code TEXT NOT NULL DEFAULT '',
		requires_secret_code INTEGER NOT NULL DEFAULT 0,
		display_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS badge_unlocked_images (
		unique_id TEXT NOT NULL,
		image_label TEXT NOT NULL,
		PRIMARY KEY (unique_id, image_label),
		FOREIGN KEY (unique_id) REFERENCES badges(unique_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS work_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL UNIQUE,
		unique_id TEXT NOT NULL,
		name TEXT NOT NULL,
		image_label TEXT NOT NULL,
		image BLOB NOT NULL,
		mime_type TEXT NOT NULL DEFAULT 'image/png',
		firmware_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_gallery_display_order ON gallery_images(display_order, label);
	CREATE INDEX IF NOT EXISTS idx_work_queue_processed_created ON work_queue(processed_at, created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
