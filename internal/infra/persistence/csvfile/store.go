// Package csvfile provides the default durable store. It persists the
// in-memory state to the two legacy CSV files after every successful
// transaction, preserving the legacy column schema byte for byte.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Kira-pln/inventario-tubetes/internal/infra/persistence/memory"
	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Legacy file names and headers. These are a stable external boundary: other
// tooling reads these files, so the schema must not drift.
const (
	TypesFile     = "tipos_tubetes.csv"
	InventoryFile = "inventario.csv"
)

var (
	typesHeader     = []string{"Tipo", "Descricao", "Tempo Estufa (h)"}
	inventoryHeader = []string{"Tipo", "Descricao", "Quantidade", "Entrada", "Retirada Prevista", "Saida", "Quantidade Saida", "Umidade Saida"}
)

// SchemaError reports a header mismatch on load. The load fails loudly
// rather than coercing columns.
type SchemaError struct {
	File string
	Got  []string
	Want []string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("%s: unexpected header %v, want %v", e.File, e.Got, e.Want)
}

// Store persists the in-memory state to CSV files under a directory.
type Store struct {
	*memory.Store
	mu  sync.Mutex
	dir string
}

// NewStore constructs a CSV-backed persistent store rooted at dir. Absent
// files yield an empty store; malformed files fail loudly.
func NewStore(dir string, engine *memory.RulesEngine) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, dir: dir}
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	mem.ImportState(snap)
	return s, nil
}

// Dir returns the configured data directory.
func (s *Store) Dir() string { return s.dir }

// RunInTransaction applies fn in memory, then rewrites both CSV files. On a
// persistence failure the in-memory state is rolled back to the
// pre-transaction snapshot so memory never diverges from disk.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx memory.Transaction) error) (memory.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

func (s *Store) load() (memory.Snapshot, error) {
	snap := memory.Snapshot{}

	typeRows, err := readCSV(filepath.Join(s.dir, TypesFile), typesHeader)
	if err != nil {
		return memory.Snapshot{}, domain.PersistenceError{Op: "load", Err: err}
	}
	for i, row := range typeRows {
		dwell, err := strconv.Atoi(row[2])
		if err != nil {
			return memory.Snapshot{}, domain.PersistenceError{Op: "load", Err: fmt.Errorf("%s row %d: dwell hours %q: %w", TypesFile, i+1, row[2], err)}
		}
		snap.TubeTypes = append(snap.TubeTypes, memory.TubeType{
			Name:        row[0],
			Description: row[1],
			DwellHours:  dwell,
		})
	}

	invRows, err := readCSV(filepath.Join(s.dir, InventoryFile), inventoryHeader)
	if err != nil {
		return memory.Snapshot{}, domain.PersistenceError{Op: "load", Err: err}
	}
	for i, row := range invRows {
		batch, err := batchFromRow(row)
		if err != nil {
			return memory.Snapshot{}, domain.PersistenceError{Op: "load", Err: fmt.Errorf("%s row %d: %w", InventoryFile, i+1, err)}
		}
		// Ledger IDs are positional: row order is entry order and rows are
		// never deleted, so position is a stable identifier.
		batch.ID = int64(i + 1)
		snap.Batches = append(snap.Batches, batch)
	}
	snap.Sequence = int64(len(snap.Batches))
	return snap, nil
}

func (s *Store) persist() error {
	snap := s.Store.ExportState()

	typeRows := make([][]string, 0, len(snap.TubeTypes))
	for _, t := range snap.TubeTypes {
		typeRows = append(typeRows, []string{t.Name, t.Description, strconv.Itoa(t.DwellHours)})
	}
	invRows := make([][]string, 0, len(snap.Batches))
	for _, b := range snap.Batches {
		invRows = append(invRows, rowFromBatch(b))
	}

	// Stage both files before renaming either so a failure leaves the prior
	// on-disk state fully intact.
	typesTmp, err := writeTemp(s.dir, typesHeader, typeRows)
	if err != nil {
		return err
	}
	invTmp, err := writeTemp(s.dir, inventoryHeader, invRows)
	if err != nil {
		_ = os.Remove(typesTmp)
		return err
	}
	if err := os.Rename(typesTmp, filepath.Join(s.dir, TypesFile)); err != nil {
		_ = os.Remove(typesTmp)
		_ = os.Remove(invTmp)
		return err
	}
	if err := os.Rename(invTmp, filepath.Join(s.dir, InventoryFile)); err != nil {
		_ = os.Remove(invTmp)
		return err
	}
	return nil
}

func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if !equalRow(records[0], header) {
		return nil, SchemaError{File: filepath.Base(path), Got: records[0], Want: header}
	}
	return records[1:], nil
}

func writeTemp(dir string, header []string, rows [][]string) (string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func batchFromRow(row []string) (memory.Batch, error) {
	qty, err := strconv.Atoi(row[2])
	if err != nil {
		return memory.Batch{}, fmt.Errorf("quantity %q: %w", row[2], err)
	}
	entered, err := time.Parse(time.RFC3339, row[3])
	if err != nil {
		return memory.Batch{}, fmt.Errorf("entry timestamp %q: %w", row[3], err)
	}
	eligible, err := time.Parse(time.RFC3339, row[4])
	if err != nil {
		return memory.Batch{}, fmt.Errorf("eligibility timestamp %q: %w", row[4], err)
	}
	b := memory.Batch{
		TypeName:       row[0],
		Description:    row[1],
		QuantityOnHand: qty,
		EnteredAt:      entered,
		EligibleAt:     eligible,
	}
	if row[5] != "" {
		withdrawn, err := time.Parse(time.RFC3339, row[5])
		if err != nil {
			return memory.Batch{}, fmt.Errorf("withdrawal timestamp %q: %w", row[5], err)
		}
		b.WithdrawnAt = &withdrawn
	}
	if row[6] != "" {
		qw, err := strconv.Atoi(row[6])
		if err != nil {
			return memory.Batch{}, fmt.Errorf("withdrawn quantity %q: %w", row[6], err)
		}
		b.QuantityWithdrawn = &qw
	}
	if row[7] != "" {
		hum, err := strconv.Atoi(row[7])
		if err != nil {
			return memory.Batch{}, fmt.Errorf("exit humidity %q: %w", row[7], err)
		}
		b.ExitHumidity = &hum
	}
	return b, nil
}

func rowFromBatch(b memory.Batch) []string {
	row := []string{
		b.TypeName,
		b.Description,
		strconv.Itoa(b.QuantityOnHand),
		b.EnteredAt.Format(time.RFC3339),
		b.EligibleAt.Format(time.RFC3339),
		"", "", "",
	}
	if b.WithdrawnAt != nil {
		row[5] = b.WithdrawnAt.Format(time.RFC3339)
	}
	if b.QuantityWithdrawn != nil {
		row[6] = strconv.Itoa(*b.QuantityWithdrawn)
	}
	if b.ExitHumidity != nil {
		row[7] = strconv.Itoa(*b.ExitHumidity)
	}
	return row
}

func equalRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
