package store

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)
)

// Config controls how Store opens and pools connections to scriptrag.db.
type Config struct {
	// MaxReadConns bounds the read-only connection pool. The writer
	// connection is always capped at one (single-writer-slot model, §5).
	MaxReadConns int
	BusyTimeoutMS int
}

// DefaultConfig returns the pooling defaults used when no explicit Config
// is supplied.
func DefaultConfig() Config {
	return Config{MaxReadConns: 4, BusyTimeoutMS: 5000}
}

// Store is the embedded SQLite store: one writer connection serialized by
// the database/sql pool (MaxOpenConns=1), and a separate bounded read pool
// opened read-only so concurrent readers never block on the writer's
// transaction (§5 Concurrency & Resource Model).
type Store struct {
	writer *sql.DB
	reader *sql.DB
	path   string
	cfg    Config
}

// Open creates (if absent) and opens scriptrag.db at path, applying
// migrations and verifying the schema version. It also ensures the
// database file and its WAL/SHM sidecars are listed in the project
// .gitignore, respecting any existing negation patterns (§8 invariant 9).
func Open(path string, cfg Config) (*Store, error) {
	if cfg.MaxReadConns <= 0 {
		cfg.MaxReadConns = DefaultConfig().MaxReadConns
	}
	if cfg.BusyTimeoutMS <= 0 {
		cfg.BusyTimeoutMS = DefaultConfig().BusyTimeoutMS
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	writerDSN := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, cfg.BusyTimeoutMS)
	writer, err := sql.Open("sqlite", writerDSN)
	if err != nil {
		return nil, fmt.Errorf("open writer connection: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := writer.Exec(p); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	readerDSN := fmt.Sprintf("%s?mode=ro&_pragma=busy_timeout(%d)", path, cfg.BusyTimeoutMS)
	reader, err := sql.Open("sqlite", readerDSN)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader pool: %w", err)
	}
	reader.SetMaxOpenConns(cfg.MaxReadConns)

	s := &Store{writer: writer, reader: reader, path: path, cfg: cfg}

	if err := s.migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}

	if err := ensureGitignored(dir, filepath.Base(path)); err != nil {
		slog.Warn("scriptrag_gitignore_update_failed",
			slog.String("dir", dir), slog.String("error", err.Error()))
	}

	return s, nil
}

// migrate creates the schema if absent and fails fatally on a
// schema_version newer than CurrentSchemaVersion.
func (s *Store) migrate() error {
	var exists int
	if err := s.writer.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`,
	).Scan(&exists); err != nil {
		return fmt.Errorf("probe schema_version: %w", err)
	}

	if exists == 0 {
		if _, err := s.writer.Exec(schemaDDL); err != nil {
			return fmt.Errorf("apply initial schema: %w", err)
		}
		if _, err := s.writer.Exec(
			`INSERT INTO schema_version(version) VALUES (?)`, CurrentSchemaVersion,
		); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.writer.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("%w: database schema v%d is newer than this binary supports (v%d)",
			ErrSchemaMismatch, version, CurrentSchemaVersion)
	}
	return nil
}

// ensureGitignored appends the database file and its WAL/SHM/journal
// sidecars to dir/.gitignore unless they are already covered, and never
// appends a line that a later negation (e.g. "!scriptrag.db") already
// overrides — it leaves existing negations untouched.
func ensureGitignored(dir, dbName string) error {
	path := filepath.Join(dir, ".gitignore")

	existing := map[string]bool{}
	negated := map[string]bool{}
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if strings.HasPrefix(line, "!") {
				negated[strings.TrimPrefix(line, "!")] = true
				continue
			}
			existing[line] = true
		}
		_ = f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}

	wanted := []string{dbName, dbName + "-wal", dbName + "-shm", dbName + "-journal"}
	var toAdd []string
	for _, w := range wanted {
		if existing[w] || negated[w] {
			continue
		}
		toAdd = append(toAdd, w)
	}
	if len(toAdd) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	if len(existing) > 0 || len(negated) > 0 {
		b.WriteString("\n")
	}
	for _, w := range toAdd {
		b.WriteString(w)
		b.WriteString("\n")
	}
	_, err = f.WriteString(b.String())
	return err
}

// transaction runs fn inside a single writer-side transaction.
func (s *Store) transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// CheckHealth reports pool occupancy and schema state, used by the
// "status"/"doctor" CLI surface.
func (s *Store) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	if err := s.reader.PingContext(ctx); err != nil {
		return &HealthStatus{Status: "unreachable"}, err
	}
	stats := s.reader.Stats()
	var version int
	if err := s.writer.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return &HealthStatus{Status: "schema_error", ActiveConns: stats.InUse, IdleConns: stats.Idle}, err
	}
	return &HealthStatus{
		Status:      "ok",
		ActiveConns: stats.InUse,
		IdleConns:   stats.Idle,
		SchemaOK:    version == CurrentSchemaVersion,
	}, nil
}

// Close checkpoints the WAL and closes both connection pools.
func (s *Store) Close() error {
	_, _ = s.writer.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	readerErr := s.reader.Close()
	writerErr := s.writer.Close()
	if writerErr != nil {
		return writerErr
	}
	return readerErr
}

const schemaDDL = `
CREATE TABLE schema_version (
	version INTEGER NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE scripts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	season INTEGER,
	episode INTEGER,
	file_path TEXT NOT NULL UNIQUE,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE scenes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	script_id INTEGER NOT NULL REFERENCES scripts(id) ON DELETE CASCADE,
	scene_number INTEGER NOT NULL,
	heading TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	time_of_day TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	boneyard_metadata TEXT NOT NULL DEFAULT '{}',
	last_read_at TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(script_id, scene_number)
);
CREATE INDEX idx_scenes_script ON scenes(script_id);
CREATE INDEX idx_scenes_hash ON scenes(content_hash);

CREATE TABLE dialogues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scene_id INTEGER NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	character TEXT NOT NULL,
	text TEXT NOT NULL,
	order_in_scene INTEGER NOT NULL
);
CREATE INDEX idx_dialogues_scene ON dialogues(scene_id);

CREATE TABLE actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scene_id INTEGER NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	order_in_scene INTEGER NOT NULL
);
CREATE INDEX idx_actions_scene ON actions(scene_id);

CREATE TABLE script_bibles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	script_id INTEGER NOT NULL REFERENCES scripts(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	file_hash TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(script_id, file_path)
);

CREATE TABLE bible_chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bible_id INTEGER NOT NULL REFERENCES script_bibles(id) ON DELETE CASCADE,
	chunk_number INTEGER NOT NULL,
	heading TEXT NOT NULL DEFAULT '',
	level INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	parent_chunk_id INTEGER REFERENCES bible_chunks(id) ON DELETE SET NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	UNIQUE(bible_id, chunk_number)
);
CREATE INDEX idx_bible_chunks_bible ON bible_chunks(bible_id);

CREATE TABLE index_checkpoints (
	script_id INTEGER PRIMARY KEY REFERENCES scripts(id) ON DELETE CASCADE,
	gitignore_hash TEXT NOT NULL DEFAULT '',
	last_indexed TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE scene_embeddings (
	entity_type TEXT NOT NULL,
	entity_id INTEGER NOT NULL,
	model TEXT NOT NULL,
	vector BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (entity_type, entity_id, model)
);
`

var ErrSchemaMismatch = sqlMismatchError("schema mismatch")

type sqlMismatchError string

func (e sqlMismatchError) Error() string { return string(e) }
