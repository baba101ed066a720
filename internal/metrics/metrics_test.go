package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}

	// Should have go runtime metrics at minimum
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func gatherNames(t *testing.T, reg *Registry) map[string]bool {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	return names
}

func TestRegistry_RecordBacktest(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBacktest("macross", "success", 1.5)

	names := gatherNames(t, reg)
	if !names["keel_backtests_total"] {
		t.Error("expected keel_backtests_total metric")
	}
	if !names["keel_backtest_duration_seconds"] {
		t.Error("expected keel_backtest_duration_seconds metric")
	}
}

func TestRegistry_RecordScreening(t *testing.T) {
	reg := NewRegistry()
	reg.RecordScreening("fivestep", 500, 12, 3.2)

	names := gatherNames(t, reg)
	if !names["keel_symbols_screened_total"] {
		t.Error("expected keel_symbols_screened_total metric")
	}
	if !names["keel_screening_hits_total"] {
		t.Error("expected keel_screening_hits_total metric")
	}
}

func TestRegistry_RecordSnapshotRebuild(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSnapshotRebuild(42)

	names := gatherNames(t, reg)
	if !names["keel_snapshot_rebuilds_total"] {
		t.Error("expected keel_snapshot_rebuilds_total metric")
	}
	if !names["keel_snapshot_rows_written_total"] {
		t.Error("expected keel_snapshot_rows_written_total metric")
	}
}

func TestRegistry_RecordFill(t *testing.T) {
	reg := NewRegistry()
	reg.RecordFill("buy")
	reg.RecordFill("sell")

	if !gatherNames(t, reg)["keel_fills_recorded_total"] {
		t.Error("expected keel_fills_recorded_total metric")
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBacktest("macross", "success", 2.0)

	path := filepath.Join(t.TempDir(), "keel.prom")
	if err := reg.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `keel_backtests_total{status="success",strategy="macross"} 1`) {
		t.Errorf("expected backtest counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE keel_backtest_duration_seconds histogram") {
		t.Errorf("expected histogram type line in output")
	}
}
