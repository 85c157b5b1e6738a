// Command statecraft runs the country decision engine on a generated
// scenario, recording every decision to SQLite and a compressed archive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/statecraft/internal/api"
	"github.com/talgya/statecraft/internal/archive"
	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/engine"
	"github.com/talgya/statecraft/internal/lut"
	"github.com/talgya/statecraft/internal/persistence"
	"github.com/talgya/statecraft/internal/scenario"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	resume := flag.Bool("resume", false, "resume the latest run from its stored snapshot")
	ticks := flag.Uint64("ticks", 0, "stop after this many ticks (overrides max_ticks)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *ticks > 0 {
		cfg.MaxTicks = *ticks
	}

	logger := newLogger(cfg.SlogLevel())
	slog.SetDefault(logger)
	slog.Info("statecraft starting", "config", *configPath, "seed", cfg.Scenario.Seed, "workers", cfg.Workers)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Scenario (regenerated from the seed on every start) ───────────
	plan, err := scenario.Generate(cfg.Scenario)
	if err != nil {
		slog.Error("scenario generation failed", "error", err)
		os.Exit(1)
	}
	counts := plan.Map.TerrainCounts()
	for t := scenario.TerrainPlains; t <= scenario.TerrainOcean; t++ {
		slog.Debug("terrain", "type", t, "count", counts[t])
	}
	names := make(map[country.ID]string, len(plan.Countries))
	for _, cp := range plan.Countries {
		names[cp.Country.ID] = cp.Name
	}

	// ── Engine ────────────────────────────────────────────────────────
	sys := engine.New(
		engine.WithTables(lut.NewTables(cfg.Tables)),
		engine.WithPruning(cfg.Pruning),
		engine.WithLogger(logger),
		engine.WithLogLimit(cfg.LogLimit),
		engine.WithWorkers(cfg.Workers),
	)

	runID := ""
	if *resume {
		runID = restore(db, sys)
	}
	if runID == "" {
		if err := plan.Apply(sys); err != nil {
			slog.Error("scenario apply failed", "error", err)
			os.Exit(1)
		}
		cfgYAML, err := cfg.YAML()
		if err != nil {
			slog.Error("config render failed", "error", err)
			os.Exit(1)
		}
		if runID, err = db.StartRun(cfg.Scenario.Seed, cfgYAML); err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
		if err := db.SaveSnapshot(runID, sys.Snapshot()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	for _, cp := range plan.Countries {
		slog.Debug("country", "id", cp.Country.ID, "name", cp.Name, "hexes", cp.Hexes,
			"edges", len(cp.Country.Edges), "tiles", len(cp.Country.BorderTiles))
	}
	slog.Info("world ready", "run", runID, "tick", sys.CurrentTick(),
		"countries", len(plan.Countries), "alliances", len(plan.Alliances), "hexes", plan.Map.Len())

	// ── Archive ───────────────────────────────────────────────────────
	var stream *archive.DecisionWriter
	if cfg.ArchiveDir != "" {
		if stream, err = archive.NewDecisionWriter(cfg.ArchiveDir, runID); err != nil {
			slog.Error("archive disabled", "error", err)
		} else {
			defer stream.Close()
			slog.Info("archiving decisions", "path", stream.Path())
		}
	}

	// ── Scheduler ─────────────────────────────────────────────────────
	sched := engine.NewScheduler(sys)
	sched.Interval = cfg.TickInterval()
	sched.MaxTicks = cfg.MaxTicks
	sched.CheckpointEvery = cfg.SnapshotEveryTicks
	sched.OnTick = func(tick uint64, logs []engine.DecisionLog) {
		if err := db.SaveDecisions(runID, logs); err != nil {
			slog.Error("decision save failed", "tick", tick, "error", err)
		}
		if stream != nil {
			if err := stream.Write(logs); err != nil {
				slog.Error("decision archive failed", "tick", tick, "error", err)
			}
		}
	}
	sched.OnCheckpoint = func(tick uint64) {
		checkpoint(db, sys, runID, cfg.ArchiveDir)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var srv *http.Server
	if cfg.Port > 0 {
		if cfg.AdminKey == "" {
			slog.Warn("STATECRAFT_ADMIN_KEY not set, admin POST endpoints are disabled")
		}
		apiServer := &api.Server{
			Sys:       sys,
			Scheduler: sched,
			DB:        db,
			RunID:     runID,
			Names:     names,
			Port:      cfg.Port,
			AdminKey:  cfg.AdminKey,
			RelayKey:  cfg.RelayKey,
		}
		srv = apiServer.Start()
	}

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nStatecraft is running: %d countries on %d hexes, run %s.\n",
		len(plan.Countries), plan.Map.Len(), runID)
	if cfg.Port > 0 {
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	}
	fmt.Println("Ticking... (Ctrl+C to stop)")

	started := time.Now()
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler failed", "error", err)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
		cancel()
	}

	slog.Info("final save...")
	checkpoint(db, sys, runID, cfg.ArchiveDir)
	printSummary(db, sys, runID, sched.Ticks(), started)
}

// newLogger writes text to a terminal and JSON everywhere else.
func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// restore loads the latest run's snapshot into sys and returns its id, or
// "" when there is nothing to resume.
func restore(db *persistence.DB, sys *engine.System) string {
	run, err := db.LatestRun()
	if err != nil {
		slog.Warn("no run to resume, starting fresh", "error", err)
		return ""
	}
	w, err := db.LoadSnapshot(run.ID)
	if err != nil {
		slog.Warn("run has no usable snapshot, starting fresh", "run", run.ID, "error", err)
		return ""
	}
	sys.Load(w)
	slog.Info("resuming run", "run", run.ID, "tick", w.Tick, "started", run.StartedAt)
	return run.ID
}

func checkpoint(db *persistence.DB, sys *engine.System, runID, archiveDir string) {
	snap := sys.Snapshot()
	if err := db.SaveSnapshot(runID, snap); err != nil {
		slog.Error("snapshot save failed", "tick", snap.Tick, "error", err)
	}
	if archiveDir == "" {
		return
	}
	if err := archive.WriteSnapshot(archive.SnapshotPath(archiveDir, runID, snap.Tick), runID, snap); err != nil {
		slog.Error("snapshot archive failed", "tick", snap.Tick, "error", err)
	}
}

func printSummary(db *persistence.DB, sys *engine.System, runID string, ran uint64, started time.Time) {
	stored, err := db.DecisionCount(runID)
	if err != nil {
		slog.Warn("decision count failed", "error", err)
	}
	kinds, err := db.KindCounts(runID)
	if err != nil {
		slog.Warn("kind count failed", "error", err)
	}
	retained := sys.Logs()

	fmt.Printf("\nRun %s stopped at tick %s after %s ticks (%s).\n",
		runID, humanize.Comma(int64(sys.CurrentTick())), humanize.Comma(int64(ran)),
		time.Since(started).Round(time.Millisecond))
	fmt.Printf("Decisions stored: %s\n", humanize.Comma(int64(stored)))

	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Printf("  %-9s %s\n", k, humanize.Comma(int64(kinds[k])))
	}
	fmt.Printf("Digest of last %s decisions: %s\n", humanize.Comma(int64(len(retained))), engine.Digest(retained))
}
