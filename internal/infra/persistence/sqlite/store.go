// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory implementation for transactions and snapshots the full state to
// a single table as JSON after every successful commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/Kira-pln/inventario-tubetes/internal/infra/persistence/memory"
	"github.com/Kira-pln/inventario-tubetes/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	bucketTypes    = "tube_types"
	bucketBatches  = "batches"
	bucketSequence = "sequence"
)

var sqliteBuckets = []string{bucketTypes, bucketBatches, bucketSequence}

// Store persists the in-memory state to SQLite as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *memory.RulesEngine) (*Store, error) {
	if path == "" {
		path = "tubetes.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		found = true
		switch bucket {
		case bucketTypes:
			if err := json.Unmarshal(payload, &snapshot.TubeTypes); err != nil {
				return fmt.Errorf("decode tube types: %w", err)
			}
		case bucketBatches:
			if err := json.Unmarshal(payload, &snapshot.Batches); err != nil {
				return fmt.Errorf("decode batches: %w", err)
			}
		case bucketSequence:
			seq, err := strconv.ParseInt(string(payload), 10, 64)
			if err != nil {
				return fmt.Errorf("decode sequence: %w", err)
			}
			snapshot.Sequence = seq
		default:
			return fmt.Errorf("unknown state bucket %q", bucket)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return nil
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case bucketTypes:
			data, err = json.Marshal(snapshot.TubeTypes)
		case bucketBatches:
			data, err = json.Marshal(snapshot.Batches)
		case bucketSequence:
			data = []byte(strconv.FormatInt(snapshot.Sequence, 10))
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn in memory, then snapshots state to SQLite. A
// failed snapshot rolls the in-memory state back to the pre-transaction
// snapshot.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx memory.Transaction) error) (memory.Result, error) {
	before := s.Store.ExportState()
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		s.Store.ImportState(before)
		return res, domain.PersistenceError{Op: "save", Err: pErr}
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
