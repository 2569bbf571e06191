package graphstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nerrad567/nlu-hermes/internal/infrastructure/database"
	"github.com/nerrad567/nlu-hermes/internal/nlu"
	"github.com/nerrad567/nlu-hermes/migrations"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// PersisterFor picks a persister by file extension: .db, .sqlite and
// .sqlite3 use SQLite, anything else is a JSON file.
func PersisterFor(path string) Persister {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return &SQLitePersister{Path: path}
	default:
		return &FilePersister{Path: path}
	}
}

// ReadGraph loads a graph from path using the persister PersisterFor picks.
func ReadGraph(ctx context.Context, path string) (*nlu.Graph, error) {
	return PersisterFor(path).Load(ctx)
}

// =============================================================================
// JSON file
// =============================================================================

// FilePersister stores the graph as a JSON file.
type FilePersister struct {
	Path string
}

// Load reads and decodes the file.
func (p *FilePersister) Load(ctx context.Context) (*nlu.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading graph file: %w", err)
	}

	return nlu.DecodeGraph(data)
}

// Save writes to a temporary file in the same directory and renames it over
// the target, so readers never see a partial graph.
func (p *FilePersister) Save(ctx context.Context, g *nlu.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := nlu.EncodeGraph(g)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating graph directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Write error takes precedence
		return fmt.Errorf("writing graph: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Sync error takes precedence
		return fmt.Errorf("syncing graph: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing graph file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("setting graph permissions: %w", err)
	}

	if err := os.Rename(tmpName, p.Path); err != nil {
		return fmt.Errorf("replacing graph file: %w", err)
	}
	return nil
}

// Location returns the file path.
func (p *FilePersister) Location() string {
	return p.Path
}

// HealthCheck confirms the graph directory exists, so the next Save can land.
func (p *FilePersister) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return checkGraphDir(p.Path)
}

// =============================================================================
// SQLite
// =============================================================================

// SQLitePersister stores the graph as a single row in a SQLite database.
// The database is opened per call; graphs are read once at startup and
// written once per train.
type SQLitePersister struct {
	Path string
}

// Load reads the stored graph row. The file is opened read-only and never
// migrated, so pointing Load at an unrelated database leaves it untouched.
func (p *SQLitePersister) Load(ctx context.Context) (*nlu.Graph, error) {
	if _, err := os.Stat(p.Path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}

	db, err := database.Open(ctx, database.Config{Path: p.Path, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck // Read-only use

	var tables int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'intent_graph'").Scan(&tables)
	if err != nil {
		return nil, fmt.Errorf("inspecting schema: %w", err)
	}
	if tables == 0 {
		return nil, ErrNotFound
	}

	var data []byte
	err = db.QueryRowContext(ctx, "SELECT data FROM intent_graph WHERE id = 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying graph: %w", err)
	}

	return nlu.DecodeGraph(data)
}

// Save upserts the graph row.
func (p *SQLitePersister) Save(ctx context.Context, g *nlu.Graph) error {
	data, err := nlu.EncodeGraph(g)
	if err != nil {
		return err
	}

	db, err := p.openForWrite(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Write already committed or failed

	_, err = db.ExecContext(ctx, `
		INSERT INTO intent_graph (id, version, intents, sentences, data, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			intents = excluded.intents,
			sentences = excluded.sentences,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		nlu.GraphFormatVersion,
		len(g.IntentNames()),
		g.SentenceCount(),
		data,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing graph: %w", err)
	}
	return nil
}

// Location returns the database path.
func (p *SQLitePersister) Location() string {
	return p.Path
}

// HealthCheck pings the database read-only. A file that has not been
// written yet only needs its directory to exist.
func (p *SQLitePersister) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(p.Path); errors.Is(err, os.ErrNotExist) {
		return checkGraphDir(p.Path)
	}

	db, err := database.Open(ctx, database.Config{Path: p.Path, ReadOnly: true})
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only use

	if err := db.HealthCheck(ctx); err != nil {
		return err
	}
	// SELECT 1 never touches the file header; reading the schema does.
	var tables int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&tables); err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	return nil
}

// openForWrite opens or creates the database and applies the graph schema.
func (p *SQLitePersister) openForWrite(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{Path: p.Path, WALMode: true})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		db.Close() //nolint:errcheck // Migration error takes precedence
		return nil, err
	}
	return db, nil
}

func checkGraphDir(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		// Save creates it.
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking graph directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("graph directory %s is not a directory", dir)
	}
	return nil
}
