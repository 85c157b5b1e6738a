// Package persistence provides SQLite-based storage for runs, decision logs
// and world snapshots.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/engine"
	"github.com/talgya/statecraft/internal/snapshot"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		config TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		country_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		action TEXT NOT NULL,
		score REAL NOT NULL,
		components_json TEXT NOT NULL,
		weights_json TEXT NOT NULL,
		rejected_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT PRIMARY KEY,
		tick INTEGER NOT NULL,
		countries INTEGER NOT NULL,
		alliances INTEGER NOT NULL,
		world_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_run_tick ON decisions(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_decisions_country ON decisions(run_id, country_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one recorded engine run.
type Run struct {
	ID        string `db:"id" json:"id"`
	Seed      int64  `db:"seed" json:"seed"`
	StartedAt string `db:"started_at" json:"started_at"`
	Config    string `db:"config" json:"config"`
}

// StartRun records a new run and returns its id.
func (db *DB) StartRun(seed int64, configYAML string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, started_at, config) VALUES (?, ?, ?, ?)",
		id, seed, time.Now().UTC().Format(time.RFC3339Nano), configYAML,
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, seed, started_at, config FROM runs WHERE id = ?", id)
	return r, err
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, seed, started_at, config FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1")
	return r, err
}

type decisionRow struct {
	Tick       uint64  `db:"tick"`
	CountryID  uint32  `db:"country_id"`
	Kind       string  `db:"kind"`
	Action     string  `db:"action"`
	Score      float64 `db:"score"`
	Components string  `db:"components_json"`
	Weights    string  `db:"weights_json"`
	Rejected   string  `db:"rejected_json"`
}

// SaveDecisions appends one tick's logs to the run.
func (db *DB) SaveDecisions(runID string, logs []engine.DecisionLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO decisions
		(run_id, tick, country_id, kind, action, score, components_json, weights_json, rejected_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range logs {
		compJSON, _ := json.Marshal(l.Components)
		weightsJSON, _ := json.Marshal(l.Weights)
		rejJSON, _ := json.Marshal(l.Rejected)

		_, err := stmt.Exec(runID, l.Tick, uint32(l.CountryID), l.Kind, l.Action, l.Score,
			string(compJSON), string(weightsJSON), string(rejJSON))
		if err != nil {
			return fmt.Errorf("insert decision tick=%d country=%d: %w", l.Tick, l.CountryID, err)
		}
	}

	return tx.Commit()
}

// RecentDecisions returns up to limit of the run's newest decisions, newest
// first.
func (db *DB) RecentDecisions(runID string, limit int) ([]engine.DecisionLog, error) {
	var rows []decisionRow
	err := db.conn.Select(&rows,
		`SELECT tick, country_id, kind, action, score, components_json, weights_json, rejected_json
		 FROM decisions WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}

	logs := make([]engine.DecisionLog, 0, len(rows))
	for _, r := range rows {
		l := engine.DecisionLog{
			Tick:      r.Tick,
			CountryID: country.ID(r.CountryID),
			Kind:      r.Kind,
			Action:    r.Action,
			Score:     r.Score,
		}
		if err := json.Unmarshal([]byte(r.Components), &l.Components); err != nil {
			return nil, fmt.Errorf("decode components: %w", err)
		}
		if err := json.Unmarshal([]byte(r.Weights), &l.Weights); err != nil {
			return nil, fmt.Errorf("decode weights: %w", err)
		}
		if err := json.Unmarshal([]byte(r.Rejected), &l.Rejected); err != nil {
			return nil, fmt.Errorf("decode rejected: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// DecisionCount returns how many decisions the run has recorded.
func (db *DB) DecisionCount(runID string) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM decisions WHERE run_id = ?", runID)
	return n, err
}

// KindCounts tallies the run's chosen action kinds.
func (db *DB) KindCounts(runID string) (map[string]int, error) {
	var rows []struct {
		Kind  string `db:"kind"`
		Count int    `db:"n"`
	}
	err := db.conn.Select(&rows,
		"SELECT kind, COUNT(*) AS n FROM decisions WHERE run_id = ? GROUP BY kind", runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Kind] = r.Count
	}
	return out, nil
}

// SaveSnapshot stores w as the run's latest snapshot (full replace) and
// records the tick in world metadata.
func (db *DB) SaveSnapshot(runID string, w snapshot.World) error {
	raw, err := snapshot.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO snapshots (run_id, tick, countries, alliances, world_json) VALUES (?, ?, ?, ?, ?)",
		runID, w.Tick, len(w.Countries), len(w.Alliances), string(raw),
	); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	for key, value := range map[string]string{
		"last_run":  runID,
		"last_tick": strconv.FormatUint(w.Tick, 10),
	} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Debug("snapshot saved", "run", runID, "tick", w.Tick, "countries", len(w.Countries))
	return nil
}

// LoadSnapshot returns the run's latest snapshot.
func (db *DB) LoadSnapshot(runID string) (snapshot.World, error) {
	var raw string
	if err := db.conn.Get(&raw, "SELECT world_json FROM snapshots WHERE run_id = ?", runID); err != nil {
		return snapshot.World{}, fmt.Errorf("load snapshot: %w", err)
	}
	if err := snapshot.Validate([]byte(raw)); err != nil {
		return snapshot.World{}, err
	}
	var w snapshot.World
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return snapshot.World{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return w, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
