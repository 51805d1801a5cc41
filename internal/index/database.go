// Package index handles SQLite database operations for the files table.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultDBFile is the store filename used when no -f or DATABASE_URL is given.
const DefaultDBFile = "recon.db"

// MemoryDB is the special store location for an in-memory run.
const MemoryDB = ":memory:"

// Database is the SQLite database handle.
type Database struct {
	db       *sql.DB
	inMemory bool
}

// ErrNoStore indicates the store file does not exist yet.
var ErrNoStore = errors.New("store does not exist")

// DB returns the underlying sql.DB for advanced queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Open opens or creates the database at the given location. The location may
// be a plain file path, ":memory:", or a DATABASE_URL-style value such as
// "sqlite:recon.db?mode=rwc".
func Open(location string) (*Database, error) {
	path := NormalizeLocation(location)
	if path == MemoryDB {
		return OpenInMemory()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// All writes are funneled through a single connection; this also keeps
	// SQLite's own locking out of the picture.
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenInMemory opens an in-memory database. Nothing is persisted.
func OpenInMemory() (*Database, error) {
	db, err := sql.Open("sqlite", MemoryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// A pool of connections would each get a private memory database.
	db.SetMaxOpenConns(1)

	d := &Database{db: db, inMemory: true}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// InMemory reports whether this store lives in memory only.
func (d *Database) InMemory() bool {
	return d.inMemory
}

// NormalizeLocation strips a DATABASE_URL-style scheme and query string,
// reducing the value to a file path or ":memory:".
func NormalizeLocation(location string) string {
	loc := strings.TrimPrefix(location, "sqlite://")
	loc = strings.TrimPrefix(loc, "sqlite:")
	if i := strings.IndexByte(loc, '?'); i >= 0 {
		loc = loc[:i]
	}
	if loc == "" || loc == MemoryDB {
		return MemoryDB
	}
	return loc
}

// Exists reports whether a store file is already present at the location.
// An in-memory location never exists.
func Exists(location string) bool {
	path := NormalizeLocation(location)
	if path == MemoryDB {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes the store file and its WAL sidecars. Missing files are fine.
func Remove(location string) error {
	path := NormalizeLocation(location)
	if path == MemoryDB {
		return nil
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// CurrentDBVersion is the current database schema version.
const CurrentDBVersion = 1

// initialize creates the database schema and applies forward migrations.
func (d *Database) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		-- Metadata table for version tracking and run bookkeeping
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		-- One row per walked file
		CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_time TEXT NOT NULL,
			abs_path TEXT NOT NULL,
			path TEXT NOT NULL,
			ext TEXT,
			mode TEXT,
			is_dir BOOLEAN,
			is_file BOOLEAN,
			is_symlink BOOLEAN,
			is_empty BOOLEAN NOT NULL DEFAULT 0,
			size INTEGER,
			user TEXT,
			"group" TEXT,
			uid INTEGER,
			gid INTEGER,
			atime TEXT,
			mtime TEXT,
			ctime TEXT,

			is_archive BOOLEAN,
			is_document BOOLEAN,
			is_media BOOLEAN,
			is_code BOOLEAN,
			is_ignored BOOLEAN,

			is_binary BOOLEAN,
			bytes_type TEXT,
			file_magic TEXT,
			crc32 TEXT,
			sha256 TEXT,
			sha512 TEXT,
			md5 TEXT,
			simhash TEXT,

			crc32_match TEXT,
			sha256_match TEXT,
			sha512_match TEXT,
			md5_match TEXT,
			simhash_match TEXT,
			path_match TEXT,
			content_match TEXT,
			yara_match TEXT,

			computed BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_files_abs_path ON files(abs_path);
		CREATE INDEX IF NOT EXISTS idx_files_ext ON files(ext);
		CREATE INDEX IF NOT EXISTS idx_files_computed ON files(computed);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d.migrate()
}

// migrate applies forward migrations from the stored schema version up to
// CurrentDBVersion.
func (d *Database) migrate() error {
	version, err := d.schemaVersion()
	if err != nil {
		return err
	}
	if version > CurrentDBVersion {
		return fmt.Errorf("store schema version %d is newer than supported version %d", version, CurrentDBVersion)
	}

	// Future versions add their steps here, keyed by the version they
	// migrate *to*.
	migrations := map[int]string{}
	for v := version + 1; v <= CurrentDBVersion; v++ {
		if stmt, ok := migrations[v]; ok {
			if _, err := d.db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to migrate store to version %d: %w", v, err)
			}
		}
	}

	if version != CurrentDBVersion {
		if err := d.setMeta("schema_version", fmt.Sprintf("%d", CurrentDBVersion)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) schemaVersion() (int, error) {
	val, err := d.getMeta("schema_version")
	if err != nil {
		return 0, err
	}
	if val == "" {
		// Fresh store: stamp the current version.
		if err := d.setMeta("schema_version", fmt.Sprintf("%d", CurrentDBVersion)); err != nil {
			return 0, err
		}
		return CurrentDBVersion, nil
	}
	var version int
	if _, err := fmt.Sscanf(val, "%d", &version); err != nil {
		return 0, fmt.Errorf("invalid schema_version %q: %w", val, err)
	}
	return version, nil
}

func (d *Database) getMeta(key string) (string, error) {
	var val string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return val, nil
}

func (d *Database) setMeta(key, value string) error {
	_, err := d.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// HasRows reports whether the files table has at least one row.
func (d *Database) HasRows() (bool, error) {
	var n int64
	if err := d.db.QueryRow("SELECT count(*) FROM files").Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count files: %w", err)
	}
	return n > 0, nil
}

// EnsureFieldsHash compares the stored computed-fields fingerprint against
// hash. On mismatch every row's computed flag is reset so the next enrichment
// pass recomputes under the new configuration. Returns true when a reset
// happened.
func (d *Database) EnsureFieldsHash(hash string) (bool, error) {
	stored, err := d.getMeta("fields_hash")
	if err != nil {
		return false, err
	}
	if stored == hash {
		return false, nil
	}
	if stored != "" {
		if _, err := d.db.Exec("UPDATE files SET computed = 0"); err != nil {
			return false, fmt.Errorf("failed to reset computed flags: %w", err)
		}
	}
	if err := d.setMeta("fields_hash", hash); err != nil {
		return false, err
	}
	return stored != "", nil
}
