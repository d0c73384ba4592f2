// Command balance-analyzer reduces batches of simulated game logs into
// per-card balance reports.
//
// Modes:
//
//	balance-analyzer -runs ./runs -deck deck.toml -out report.json
//	balance-analyzer -ingest -runs ./runs -batch nightly-42
//	balance-analyzer -from-db -batch nightly-42
//	balance-analyzer -watch -runs ./runs -batch nightly-42
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Daniangio/pigsattack-sub000/internal/balance"
	"github.com/Daniangio/pigsattack-sub000/internal/config"
	"github.com/Daniangio/pigsattack-sub000/internal/deck"
	"github.com/Daniangio/pigsattack-sub000/internal/runlog"
	"github.com/Daniangio/pigsattack-sub000/internal/storage"
	"github.com/Daniangio/pigsattack-sub000/internal/storage/repository"
	"github.com/Daniangio/pigsattack-sub000/internal/version"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "Path to configuration file")
		runsDir    = flag.String("runs", "", "Run log directory (overrides config)")
		deckFile   = flag.String("deck", "", "Deck definition file (overrides config)")
		outPath    = flag.String("out", "", "Write the report JSON to this file (default: stdout)")
		batchID    = flag.String("batch", "", "Batch ID for database modes")
		workers    = flag.Int("workers", 0, "Accumulation shards (overrides config)")
		ingest     = flag.Bool("ingest", false, "Ingest runs from the runs directory into the database")
		fromDB     = flag.Bool("from-db", false, "Analyze a batch previously ingested into the database")
		watch      = flag.Bool("watch", false, "Watch the runs directory and ingest new run files")
		noPersist  = flag.Bool("no-persist", false, "Skip saving the report to the database")
		showVer    = flag.Bool("version", false, "Print the version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version.GetVersion())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *runsDir != "" {
		cfg.Runs.Dir = *runsDir
	}
	if *deckFile != "" {
		cfg.Deck.File = *deckFile
	}
	if *workers != 0 {
		cfg.Analysis.Workers = *workers
	}

	switch {
	case *ingest:
		err = runIngest(cfg, *batchID)
	case *watch:
		err = runWatch(cfg, *batchID)
	default:
		err = runAnalyze(cfg, *batchID, *outPath, *fromDB, *noPersist)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// openDB opens the configured database, applying migrations when enabled.
func openDB(cfg *config.Config) (*storage.DB, error) {
	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(cfg.Database.Path); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return storage.Open(storage.DefaultConfig(cfg.Database.Path))
}

// loadDeck loads the deck definition if one is configured. A missing deck
// only disables the Utility criterion and unknown-card flagging.
func loadDeck(cfg *config.Config) *deck.Definition {
	if cfg.Deck.File == "" {
		return nil
	}
	def, err := deck.Load(cfg.Deck.File)
	if err != nil {
		log.Printf("Deck definition unavailable (%v); continuing without it", err)
		return nil
	}
	return def
}

func runAnalyze(cfg *config.Config, batchID, outPath string, fromDB, noPersist bool) error {
	ctx := context.Background()

	var batch *runlog.Batch
	if fromDB {
		if batchID == "" {
			return fmt.Errorf("-from-db requires -batch")
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := repository.NewRunRepository(db.Conn()).ListBatch(ctx, batchID)
		if err != nil {
			return err
		}
		batch = &runlog.Batch{Runs: runs}
	} else {
		var err error
		batch, err = runlog.ReadDir(cfg.Runs.Dir, cfg.Runs.Pattern)
		if err != nil {
			return err
		}
	}
	log.Printf("Loaded %d runs (%d dropped)", len(batch.Runs), batch.Dropped)

	analyzer := balance.NewAnalyzer(&balance.AnalyzerConfig{
		Workers: cfg.Analysis.Workers,
		Deck:    loadDeck(cfg),
	})
	report, err := analyzer.Analyze(batch)
	if err != nil {
		return err
	}

	if !noPersist && cfg.Database.Path != "" && batchID != "" {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.NewReportRepository(db.Conn()).SaveReport(ctx, batchID, report); err != nil {
			return err
		}
		log.Printf("Saved report for batch %s", batchID)
	}

	return writeReport(report, outPath)
}

func writeReport(report *balance.CardBalanceReport, outPath string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if outPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Printf("Wrote report to %s", outPath)
	return nil
}

func runIngest(cfg *config.Config, batchID string) error {
	if batchID == "" {
		return fmt.Errorf("-ingest requires -batch")
	}

	batch, err := runlog.ReadDir(cfg.Runs.Dir, cfg.Runs.Pattern)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewRunRepository(db.Conn())
	if err := repo.InsertRuns(context.Background(), batchID, batch.Runs); err != nil {
		return err
	}
	log.Printf("Ingested %d runs into batch %s (%d dropped)", len(batch.Runs), batchID, batch.Dropped)
	return nil
}

func runWatch(cfg *config.Config, batchID string) error {
	if batchID == "" {
		return fmt.Errorf("-watch requires -batch")
	}

	settle, err := cfg.Watch.ParseSettle()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := repository.NewRunRepository(db.Conn())

	watcher, err := runlog.NewWatcher(&runlog.WatcherConfig{
		Dir:               cfg.Runs.Dir,
		Pattern:           cfg.Runs.Pattern,
		Settle:            settle,
		MaxFilesPerSecond: cfg.Watch.MaxFilesPerSecond,
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	log.Printf("Watching %s for new run files (batch %s)", cfg.Runs.Dir, batchID)

	for {
		select {
		case <-ctx.Done():
			log.Print("Shutting down watcher")
			return nil
		case err := <-watcher.Errors():
			log.Printf("Watch error: %v", err)
		case path, ok := <-watcher.Files():
			if !ok {
				return nil
			}
			fileBatch, err := runlog.ReadFile(path)
			if err != nil {
				log.Printf("Skipping %s: %v", path, err)
				continue
			}
			if err := repo.InsertRuns(ctx, batchID, fileBatch.Runs); err != nil {
				log.Printf("Failed to ingest %s: %v", path, err)
				continue
			}
			log.Printf("Ingested %s: %d runs (%d dropped)", path, len(fileBatch.Runs), fileBatch.Dropped)
		}
	}
}
