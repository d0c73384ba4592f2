package balance

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Daniangio/pigsattack-sub000/internal/deck"
	"github.com/Daniangio/pigsattack-sub000/internal/runlog"
)

// AnalyzerConfig holds configuration for an Analyzer.
type AnalyzerConfig struct {
	// Workers is how many shards the run set is split into for parallel
	// accumulation. Default: runtime.NumCPU().
	Workers int

	// Deck joins card configuration (Utility criterion, unknown-card
	// flagging). Optional.
	Deck *deck.Definition

	// Logger receives per-batch diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Analyzer runs the full balance pipeline over a finite batch of runs:
// sharded accumulation, metric derivation, population thresholds, tag
// classification and synergy detection.
type Analyzer struct {
	workers int
	deck    *deck.Definition
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(config *AnalyzerConfig) *Analyzer {
	if config == nil {
		config = &AnalyzerConfig{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{workers: workers, deck: config.Deck, logger: logger}
}

// shardResult is one worker's partial reduction.
type shardResult struct {
	acc     *Accumulator
	synergy *SynergyAnalyzer
}

// Analyze reduces a batch into a balance report. It fails only on the
// batch-fatal conditions: an empty batch or an empty threshold population.
// Per-card gaps surface as nil metrics, never as errors.
func (a *Analyzer) Analyze(batch *runlog.Batch) (*CardBalanceReport, error) {
	if batch == nil || len(batch.Runs) == 0 {
		return nil, fmt.Errorf("analyze batch: %w", ErrEmptyPopulation)
	}

	acc, synergy := a.accumulate(batch.Runs)

	botCount := acc.BotCount()
	allCounters := acc.Counters()
	metrics := make(map[string]*CardMetrics, len(allCounters))
	for name, counters := range allCounters {
		metrics[name] = DeriveMetrics(counters, botCount)
		if counters.TimesBought > counters.TimesOffered {
			// Tolerated: usually a market-snapshot gap, not a data bug
			// worth dropping the batch over.
			a.logger.Debug("card bought more often than offered",
				"card", name,
				"bought", counters.TimesBought,
				"offered", counters.TimesOffered)
		}
	}

	// Thresholds are a global precondition for every tag: classification
	// must not start until the whole population has been observed.
	thresholds, err := ComputeThresholds(metrics, acc.GameLength())
	if err != nil {
		return nil, fmt.Errorf("analyze batch of %d runs: %w", len(batch.Runs), err)
	}

	classifier := NewClassifier(thresholds, a.deck)
	synergies := synergy.Results(metrics, botCount)

	report := &CardBalanceReport{
		GeneratedAt: time.Now().UTC(),
		TotalGames:  acc.Games(),
		DroppedRuns: batch.Dropped,
		BotCount:    botCount,
		GameLength:  acc.GameLength(),
		Thresholds:  thresholds,
		Cards:       make(map[string]*CardReport, len(allCounters)),
	}

	for name, counters := range allCounters {
		m := metrics[name]
		card := &CardReport{
			CardCounters: counters,
			CardMetrics:  m,
			CardUsage:    counters.TimesActivated + counters.TimesUsed,
			Tags:         classifier.Classify(name, counters, m),
		}
		if cs, ok := synergies[name]; ok {
			card.Synergy = cs.Synergy
			card.AntiSynergy = cs.AntiSynergy
			card.TopSynergy = cs.TopSynergy
			card.TopAntiSynergy = cs.TopAntiSynergy
			card.DayWinRateAdded = cs.DayWinRateAdded
			card.NightWinRateAdded = cs.NightWinRateAdded
		}
		if a.deck != nil {
			if _, known := a.deck.Get(name); !known {
				card.UnknownCard = true
				report.UnknownCards = append(report.UnknownCards, name)
			}
		}
		report.Cards[name] = card
	}
	sort.Strings(report.UnknownCards)

	a.logger.Info("balance analysis complete",
		"games", report.TotalGames,
		"dropped", report.DroppedRuns,
		"cards", len(report.Cards),
		"unknown_cards", len(report.UnknownCards))

	return report, nil
}

// accumulate shards the runs across workers and merges the partial
// reductions in shard order. Counter merging is element-wise summation, so
// the result equals a single sequential pass.
func (a *Analyzer) accumulate(runs []*runlog.RunLog) (*Accumulator, *SynergyAnalyzer) {
	workers := a.workers
	if workers > len(runs) {
		workers = len(runs)
	}
	if workers <= 1 {
		acc := NewAccumulator()
		synergy := NewSynergyAnalyzer()
		for _, run := range runs {
			acc.AddRun(run)
			synergy.AddRun(run)
		}
		return acc, synergy
	}

	results := make([]shardResult, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			acc := NewAccumulator()
			synergy := NewSynergyAnalyzer()
			for i := w; i < len(runs); i += workers {
				acc.AddRun(runs[i])
				synergy.AddRun(runs[i])
			}
			results[w] = shardResult{acc: acc, synergy: synergy}
		}(w)
	}
	wg.Wait()

	acc := results[0].acc
	synergy := results[0].synergy
	for _, res := range results[1:] {
		acc.Merge(res.acc)
		synergy.Merge(res.synergy)
	}
	return acc, synergy
}
