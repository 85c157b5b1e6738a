package archive

import (
	"io"
	"log/slog"
	"os"
	"reflect"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/statecraft/internal/engine"
)

func testSystem() *engine.System {
	sys := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	sys.AddCountry(1)
	sys.AddCountry(2)
	sys.AddEdge(1, 2, 1, 0.7)
	sys.AddEdge(2, 1, 1, 0.5)
	return sys
}

func TestDecisionStreamAppendsAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	sys := testSystem()
	var want []engine.DecisionLog

	w, err := NewDecisionWriter(dir, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		logs := sys.Tick()
		if err := w.Write(logs); err != nil {
			t.Fatal(err)
		}
		want = append(want, logs...)
	}
	if w.Written() != len(want) {
		t.Errorf("Written() = %d, want %d", w.Written(), len(want))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := w.Write(sys.Tick()); err == nil {
		t.Error("Write after Close should fail")
	}

	w, err = NewDecisionWriter(dir, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	logs := sys.Tick()
	if err := w.Write(logs); err != nil {
		t.Fatal(err)
	}
	want = append(want, logs...)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadDecisions(DecisionPath(dir, "run-a"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadDecisions returned %d logs, want %d identical", len(got), len(want))
	}
	if engine.Digest(got) != engine.Digest(want) {
		t.Error("archived stream digest differs")
	}
}

func TestReadDecisionsRejectsGarbage(t *testing.T) {
	path := DecisionPath(t.TempDir(), "bad")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	enc.Write([]byte("{\"tick\":1}\nnot json\n"))
	enc.Close()
	f.Close()

	logs, err := ReadDecisions(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if len(logs) != 1 || logs[0].Tick != 1 {
		t.Errorf("logs before the bad line = %+v", logs)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	sys := testSystem()
	sys.AddAlliance(1, 2)
	sys.Tick()
	sys.Tick()
	want := sys.Snapshot()

	path := SnapshotPath(t.TempDir(), "run-b", want.Tick)
	if err := WriteSnapshot(path, "run-b", want); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	h, got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if h != (Header{Version: SnapshotVersion, RunID: "run-b", Tick: 2}) {
		t.Errorf("header = %+v", h)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadSnapshot = %+v\nwant %+v", got, want)
	}
}

func TestReadSnapshotRejectsUnknownVersion(t *testing.T) {
	path := SnapshotPath(t.TempDir(), "run-c", 0)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, _ := zstd.NewWriter(f)
	enc.Write([]byte("{\"version\":9}\n{}"))
	enc.Close()
	f.Close()

	if _, _, err := ReadSnapshot(path); err == nil {
		t.Error("expected version error")
	}
	if _, _, err := ReadSnapshot(path + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}
