// internal/storage/archive/localfs_test.go
package archive

import (
	"context"
	"testing"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestLocalFS_WriteRead(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocalFS(dir)
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	ctx := context.Background()
	data := []byte("date,symbol,side\n2024-01-02,600519.SH,buy\n")

	if err := fs.Write(ctx, "backtests/run-1/orders.csv", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "backtests/run-1/orders.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestLocalFS_Exists(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	exists, _ := fs.Exists(ctx, "nonexistent.csv")
	if exists {
		t.Error("expected false for nonexistent file")
	}

	fs.Write(ctx, "exists.csv", []byte("data"))
	exists, _ = fs.Exists(ctx, "exists.csv")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestLocalFS_List(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	fs.Write(ctx, "backtests/run-1/trades.csv", []byte("a"))
	fs.Write(ctx, "backtests/run-1/orders.csv", []byte("b"))
	fs.Write(ctx, "backtests/run-2/trades.csv", []byte("c"))

	paths, err := fs.List(ctx, "backtests/run-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(paths) != 2 {
		t.Errorf("expected 2 paths, got %d", len(paths))
	}
	for _, p := range paths {
		if p != "backtests/run-1/trades.csv" && p != "backtests/run-1/orders.csv" {
			t.Errorf("unexpected path %q", p)
		}
	}
}

func TestLocalFS_Delete(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	fs.Write(ctx, "delete.csv", []byte("data"))
	fs.Delete(ctx, "delete.csv")

	exists, _ := fs.Exists(ctx, "delete.csv")
	if exists {
		t.Error("file should be deleted")
	}
}
