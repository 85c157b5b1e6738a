package persistence

import (
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSystem() *engine.System {
	sys := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	for id := 1; id <= 3; id++ {
		sys.AddCountry(country.ID(id))
	}
	sys.AddEdge(1, 2, 1, 0.7)
	sys.AddEdge(2, 3, 1, 0.6)
	sys.AddEdge(3, 1, 2, 0.2)
	sys.AddAlliance(1, 3)
	return sys
}

func TestStartRun(t *testing.T) {
	db := openTestDB(t)
	first, err := db.StartRun(42, "seed: 42\n")
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.StartRun(7, "")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("run ids collide")
	}

	r, err := db.GetRun(first)
	if err != nil {
		t.Fatal(err)
	}
	if r.Seed != 42 || r.Config != "seed: 42\n" || r.StartedAt == "" {
		t.Errorf("GetRun = %+v", r)
	}
	latest, err := db.LatestRun()
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second {
		t.Errorf("LatestRun = %s, want %s", latest.ID, second)
	}
}

func TestDecisionsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun(1, "")
	if err != nil {
		t.Fatal(err)
	}

	sys := testSystem()
	var all []engine.DecisionLog
	for i := 0; i < 4; i++ {
		logs := sys.Tick()
		if err := db.SaveDecisions(run, logs); err != nil {
			t.Fatalf("SaveDecisions: %v", err)
		}
		all = append(all, logs...)
	}
	if err := db.SaveDecisions(run, nil); err != nil {
		t.Errorf("SaveDecisions(nil) = %v", err)
	}

	n, err := db.DecisionCount(run)
	if err != nil || n != len(all) {
		t.Fatalf("DecisionCount = %d, %v; want %d", n, err, len(all))
	}

	recent, err := db.RecentDecisions(run, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	for i, got := range recent {
		want := all[len(all)-1-i]
		if !reflect.DeepEqual(got, want) {
			t.Errorf("recent[%d] = %+v\nwant %+v", i, got, want)
		}
	}
	if engine.Digest(recent) != engine.Digest([]engine.DecisionLog{all[len(all)-1], all[len(all)-2], all[len(all)-3]}) {
		t.Error("stored decisions changed their digest")
	}

	kinds, err := db.KindCounts(run)
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, c := range kinds {
		total += c
	}
	if total != len(all) {
		t.Errorf("KindCounts total = %d, want %d", total, len(all))
	}

	other, err := db.StartRun(2, "")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := db.DecisionCount(other); n != 0 {
		t.Errorf("new run sees %d decisions", n)
	}
}

func TestSnapshotFullReplace(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun(1, "")
	if err != nil {
		t.Fatal(err)
	}

	sys := testSystem()
	sys.Tick()
	if err := db.SaveSnapshot(run, sys.Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	sys.Tick()
	want := sys.Snapshot()
	if err := db.SaveSnapshot(run, want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := db.LoadSnapshot(run)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadSnapshot = %+v\nwant %+v", got, want)
	}

	tick, err := db.GetMeta("last_tick")
	if err != nil || tick != "2" {
		t.Errorf("last_tick = %q, %v; want 2", tick, err)
	}
	if last, _ := db.GetMeta("last_run"); last != run {
		t.Errorf("last_run = %q, want %q", last, run)
	}

	if _, err := db.LoadSnapshot("missing"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("seed", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("seed", "2"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("seed"); err != nil || v != "2" {
		t.Errorf("GetMeta = %q, %v; want 2", v, err)
	}
	if _, err := db.GetMeta("absent"); err == nil {
		t.Error("expected error for absent key")
	}
}
