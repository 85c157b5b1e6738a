// Package archive writes zstd-compressed telemetry and snapshot files that
// outlive the database: one JSONL decision stream per run, and standalone
// snapshot files for replay.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/statecraft/internal/engine"
	"github.com/talgya/statecraft/internal/snapshot"
)

// SnapshotVersion is the header version written by WriteSnapshot.
const SnapshotVersion = 1

// DecisionPath returns the decision stream path for a run.
func DecisionPath(dir, runID string) string {
	return filepath.Join(dir, runID+".decisions.jsonl.zst")
}

// SnapshotPath returns the snapshot file path for a run at a tick.
func SnapshotPath(dir, runID string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s.snapshot-%08d.json.zst", runID, tick))
}

// DecisionWriter appends decision logs to a compressed JSONL stream.
// Reopening an existing stream appends a new zstd frame.
type DecisionWriter struct {
	path string

	mu      sync.Mutex
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	written int
}

// NewDecisionWriter opens the run's decision stream under dir.
func NewDecisionWriter(dir, runID string) (*DecisionWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	path := DecisionPath(dir, runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decision stream: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &DecisionWriter{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the file being written.
func (w *DecisionWriter) Path() string { return w.path }

// Written returns the number of logs written so far.
func (w *DecisionWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Write appends one line per log.
func (w *DecisionWriter) Write(logs []engine.DecisionLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return fmt.Errorf("decision stream %s is closed", w.path)
	}

	for _, l := range logs {
		b, err := json.Marshal(l)
		if err != nil {
			return err
		}
		if _, err := w.w.Write(b); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
		w.written++
	}
	return w.w.Flush()
}

// Close flushes and closes the stream. Closing twice is a no-op.
func (w *DecisionWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}

// ReadDecisions reads every log in a decision stream, oldest first.
func ReadDecisions(path string) ([]engine.DecisionLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var logs []engine.DecisionLog
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		var l engine.DecisionLog
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return logs, fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
		logs = append(logs, l)
	}
	if err := sc.Err(); err != nil {
		return logs, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return logs, nil
}

// Header is the first line of a snapshot file.
type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
}

// WriteSnapshot writes a header line followed by the snapshot JSON.
func WriteSnapshot(path, runID string, w snapshot.World) error {
	raw, err := snapshot.Marshal(w)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}

	hb, _ := json.Marshal(Header{Version: SnapshotVersion, RunID: runID, Tick: w.Tick})
	bw := bufio.NewWriterSize(enc, 256*1024)
	_, err = bw.Write(append(hb, '\n'))
	if err == nil {
		_, err = bw.Write(raw)
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot reads and validates a snapshot file.
func ReadSnapshot(path string) (Header, snapshot.World, error) {
	var (
		h Header
		w snapshot.World
	)
	f, err := os.Open(path)
	if err != nil {
		return h, w, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, w, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, w, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, w, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != SnapshotVersion {
		return h, w, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return h, w, fmt.Errorf("read snapshot: %w", err)
	}
	if err := snapshot.Validate(body); err != nil {
		return h, w, err
	}
	if err := json.Unmarshal(body, &w); err != nil {
		return h, w, fmt.Errorf("decode snapshot: %w", err)
	}
	return h, w, nil
}
