package balance

import (
	"errors"
	"sort"
)

// Fixed cutoffs and sample gates. The win-rate-added cutoffs are constants
// rather than data-derived; the delta-VP cutoffs scale with the card pool
// (see ComputeThresholds).
const (
	// WRAStrong is the win-rate-added magnitude treated as a strong signal.
	WRAStrong = 0.05
	// WRAWeak is the win-rate-added magnitude below which a card reads as
	// neutral.
	WRAWeak = 0.02

	// MinDeltaSamples is how many delta-VP samples a card needs before its
	// delta signal may influence tagging.
	MinDeltaSamples = 5
	// MinSynergySamples is how many co-owned games a card pair needs before
	// it contributes a synergy or anti-synergy entry. Deliberately looser
	// than MinDeltaSamples: pair populations are much sparser.
	MinSynergySamples = 3
)

// Floors for the data-derived delta-VP cutoffs.
const (
	deltaStrongFloor = 1.0
	deltaWeakFloor   = 0.5
)

// ErrEmptyPopulation means no card in the batch produced a defined pick
// rate or delta-VP average, so population thresholds cannot be computed and
// classification of the whole batch is aborted.
var ErrEmptyPopulation = errors.New("no card has a defined pick rate or delta-VP value")

// Thresholds are the cross-card statistics every tag decision depends on.
// They must be computed from the full derived-metrics population before any
// card is classified.
type Thresholds struct {
	PickRateMedian float64 `json:"pick_rate_median"`
	WRAStrong      float64 `json:"wra_strong"`
	WRAWeak        float64 `json:"wra_weak"`
	DeltaStrong    float64 `json:"delta_strong"`
	DeltaWeak      float64 `json:"delta_weak"`

	// GameLength is the longest run in the batch, used for timing-based
	// secondary tags.
	GameLength int `json:"game_length"`
}

// median returns the median of values. Caller guarantees len > 0.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// ComputeThresholds derives population thresholds from all cards' metrics.
// It fails with ErrEmptyPopulation when neither a pick-rate nor a delta-VP
// population exists.
func ComputeThresholds(metrics map[string]*CardMetrics, gameLength int) (*Thresholds, error) {
	var pickRates, absDeltas []float64
	for _, m := range metrics {
		if m.PickRate != nil {
			pickRates = append(pickRates, *m.PickRate)
		}
		if m.AvgDeltaVP != nil {
			d := *m.AvgDeltaVP
			if d < 0 {
				d = -d
			}
			absDeltas = append(absDeltas, d)
		}
	}

	if len(pickRates) == 0 && len(absDeltas) == 0 {
		return nil, ErrEmptyPopulation
	}

	t := &Thresholds{
		WRAStrong:  WRAStrong,
		WRAWeak:    WRAWeak,
		GameLength: gameLength,
	}

	if len(pickRates) > 0 {
		t.PickRateMedian = median(pickRates)
	}

	deltaMedianAbs := 0.0
	if len(absDeltas) > 0 {
		deltaMedianAbs = median(absDeltas)
	}
	t.DeltaStrong = deltaMedianAbs
	if t.DeltaStrong < deltaStrongFloor {
		t.DeltaStrong = deltaStrongFloor
	}
	t.DeltaWeak = t.DeltaStrong * 0.5
	if t.DeltaWeak < deltaWeakFloor {
		t.DeltaWeak = deltaWeakFloor
	}

	return t, nil
}
