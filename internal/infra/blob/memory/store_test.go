package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/Kira-pln/inventario-tubetes/internal/blob/core"
)

func TestPutGetDeleteRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	info, err := store.Put(ctx, "reports/history.json", strings.NewReader(`[]`), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 2 || info.ETag == "" {
		t.Fatalf("incomplete info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "reports/history.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "[]" || got.ContentType != "application/json" {
		t.Fatalf("round trip drifted: %s %+v", data, got)
	}

	if _, _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatal("expected not-found error")
	}

	existed, err := store.Delete(ctx, "reports/history.json")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
}

func TestPutOverwrites(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("v1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("v2"), core.PutOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "v2" {
		t.Fatalf("expected v2, got %s", data)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []string{"reports/a", "reports/b", "other/c"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "reports/a" || infos[1].Key != "reports/b" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestDriverIdentifier(t *testing.T) {
	if got := New().Driver(); got != core.DriverMemory {
		t.Fatalf("expected memory driver, got %s", got)
	}
}
