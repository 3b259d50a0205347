package reports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Kira-pln/inventario-tubetes/internal/blob"
	"github.com/Kira-pln/inventario-tubetes/internal/core"
)

var exportEntry = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seedService(t *testing.T) *core.Service {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	ctx := context.Background()
	if _, _, err := svc.RegisterTubeType(ctx, "PVC-25", "tubete pvc 25mm", 2); err != nil {
		t.Fatalf("register type: %v", err)
	}
	if _, _, err := svc.RegisterEntry(ctx, "PVC-25", exportEntry, 10); err != nil {
		t.Fatalf("entry: %v", err)
	}
	withdrawn, _, err := svc.RegisterEntry(ctx, "PVC-25", exportEntry, 5)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if _, _, err := svc.RegisterWithdrawal(ctx, withdrawn.ID, exportEntry.Add(3*time.Hour), 5, 12); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	return svc
}

func fetch(t *testing.T, store blob.Store, key string) []byte {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return data
}

func TestExportStockCSV(t *testing.T) {
	svc := seedService(t)
	store := blob.NewMemory()
	exporter := NewExporter(svc, store).WithClock(func() time.Time { return exportEntry.Add(time.Hour) })

	artifact, err := exporter.Export(context.Background(), KindStock, FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if artifact.Key != "reports/stock.csv" || artifact.Rows != 1 {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}

	records, err := csv.NewReader(strings.NewReader(string(fetch(t, store, artifact.Key)))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}
	wantHeader := []string{"Tipo", "Descricao", "Quantidade", "Entrada", "Retirada Prevista", "Pode Retirar?"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Fatalf("header drifted at %d: %q", i, records[0][i])
		}
	}
	row := records[1]
	if row[0] != "PVC-25" || row[2] != "10" || row[5] != "Não" {
		t.Fatalf("unexpected stock row: %v", row)
	}
}

func TestExportStockEligibilityUsesClock(t *testing.T) {
	svc := seedService(t)
	store := blob.NewMemory()
	exporter := NewExporter(svc, store).WithClock(func() time.Time { return exportEntry.Add(3 * time.Hour) })

	artifact, err := exporter.Export(context.Background(), KindStock, FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(fetch(t, store, artifact.Key)))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if records[1][5] != "Sim" {
		t.Fatalf("expected eligible after dwell, got %v", records[1])
	}
}

func TestExportHistoryJSON(t *testing.T) {
	svc := seedService(t)
	store := blob.NewMemory()
	exporter := NewExporter(svc, store)

	artifact, err := exporter.Export(context.Background(), KindHistory, FormatJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if artifact.Key != "reports/history.json" || artifact.ContentType != "application/json" {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}

	var rows []map[string]any
	if err := json.Unmarshal(fetch(t, store, artifact.Key), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(rows))
	}
	if rows[0]["type"] != "PVC-25" || rows[0]["quantity_withdrawn"] != float64(5) || rows[0]["exit_humidity"] != float64(12) {
		t.Fatalf("unexpected history row: %+v", rows[0])
	}
}

func TestExportUnknownKindFails(t *testing.T) {
	svc := seedService(t)
	exporter := NewExporter(svc, blob.NewMemory())
	if _, err := exporter.Export(context.Background(), Kind("audit"), FormatCSV); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestRepeatedExportOverwrites(t *testing.T) {
	svc := seedService(t)
	store := blob.NewMemory()
	exporter := NewExporter(svc, store)
	ctx := context.Background()

	if _, err := exporter.Export(ctx, KindHistory, FormatCSV); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if _, err := exporter.Export(ctx, KindHistory, FormatCSV); err != nil {
		t.Fatalf("second export must overwrite, got %v", err)
	}
	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected a single artifact per key, got %d", len(infos))
	}
}
