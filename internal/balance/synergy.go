package balance

import (
	"sort"

	"github.com/Daniangio/pigsattack-sub000/internal/runlog"
)

// SynergyEntry records how a card's win rate shifts when co-owned with a
// partner card. Delta is the co-ownership win rate minus the card's solo
// (all-owners) win rate; positive means synergy, negative anti-synergy.
type SynergyEntry struct {
	Partner string  `json:"partner"`
	Delta   float64 `json:"delta"`
	Games   int     `json:"games"`
	WinRate float64 `json:"win_rate"`
}

// CardSynergies is the synergy view of one card: the full sorted lists plus
// the single strongest entry of each polarity.
type CardSynergies struct {
	Synergy        []SynergyEntry `json:"synergy"`
	AntiSynergy    []SynergyEntry `json:"anti_synergy"`
	TopSynergy     *SynergyEntry  `json:"top_synergy,omitempty"`
	TopAntiSynergy *SynergyEntry  `json:"top_anti_synergy,omitempty"`

	// Era-split win rate added: the card's WRA restricted to games where it
	// was bought during the day vs. during the night. Nil below the sample
	// gate.
	DayWinRateAdded   *float64 `json:"day_win_rate_added"`
	NightWinRateAdded *float64 `json:"night_win_rate_added"`
}

type pairKey struct {
	card    string
	partner string
}

type winCount struct {
	games int
	wins  int
}

// SynergyAnalyzer accumulates pairwise co-ownership outcomes and era-split
// buy outcomes over a run set. Like the stats accumulator it is pure and
// mergeable; it reads the same frozen run set and can run concurrently with
// metric derivation.
type SynergyAnalyzer struct {
	pairs map[pairKey]*winCount
	day   map[string]*winCount
	night map[string]*winCount
}

// NewSynergyAnalyzer creates an empty synergy accumulator.
func NewSynergyAnalyzer() *SynergyAnalyzer {
	return &SynergyAnalyzer{
		pairs: make(map[pairKey]*winCount),
		day:   make(map[string]*winCount),
		night: make(map[string]*winCount),
	}
}

func bump(m map[string]*winCount, key string, won bool) {
	wc, ok := m[key]
	if !ok {
		wc = &winCount{}
		m[key] = wc
	}
	wc.games++
	if won {
		wc.wins++
	}
}

// AddRun folds one run's end-of-game ownership and buy timing into the
// pair and era counters.
func (sa *SynergyAnalyzer) AddRun(run *runlog.RunLog) {
	// Era split: unique (player, card) buy events, keyed to the player's
	// first acquisition, partitioned by the era it happened in.
	firstBuyEra := make(map[playerCard]string)
	firstBuyRound := make(map[playerCard]int)
	for _, action := range run.Actions {
		if action.Type != runlog.ActionBuyUpgrade && action.Type != runlog.ActionBuyWeapon {
			continue
		}
		for _, card := range action.Cards {
			key := playerCard{action.PlayerID, card.Name}
			if prev, ok := firstBuyRound[key]; !ok || action.Round < prev {
				firstBuyRound[key] = action.Round
				firstBuyEra[key] = action.Era
			}
		}
	}

	for _, fs := range run.FinalStats {
		won := fs.UserID == run.WinnerID

		owned := ownedCards(&fs)
		for _, card := range owned {
			for _, partner := range owned {
				if partner == card {
					continue
				}
				key := pairKey{card, partner}
				wc, ok := sa.pairs[key]
				if !ok {
					wc = &winCount{}
					sa.pairs[key] = wc
				}
				wc.games++
				if won {
					wc.wins++
				}
			}
		}

		for key, era := range firstBuyEra {
			if key.player != fs.UserID {
				continue
			}
			if era == runlog.EraDay {
				bump(sa.day, key.card, won)
			} else {
				bump(sa.night, key.card, won)
			}
		}
	}
}

// Merge folds another analyzer's counters into this one.
func (sa *SynergyAnalyzer) Merge(other *SynergyAnalyzer) {
	for key, wc := range other.pairs {
		dst, ok := sa.pairs[key]
		if !ok {
			dst = &winCount{}
			sa.pairs[key] = dst
		}
		dst.games += wc.games
		dst.wins += wc.wins
	}
	for card, wc := range other.day {
		dst, ok := sa.day[card]
		if !ok {
			dst = &winCount{}
			sa.day[card] = dst
		}
		dst.games += wc.games
		dst.wins += wc.wins
	}
	for card, wc := range other.night {
		dst, ok := sa.night[card]
		if !ok {
			dst = &winCount{}
			sa.night[card] = dst
		}
		dst.games += wc.games
		dst.wins += wc.wins
	}
}

// Results gates and sorts the accumulated counters into per-card synergy
// views. metrics supplies each card's solo win rate (pairs whose base card
// has no defined win rate are skipped) and botCount the era-split baseline.
func (sa *SynergyAnalyzer) Results(metrics map[string]*CardMetrics, botCount int) map[string]*CardSynergies {
	results := make(map[string]*CardSynergies)
	view := func(card string) *CardSynergies {
		cs, ok := results[card]
		if !ok {
			cs = &CardSynergies{}
			results[card] = cs
		}
		return cs
	}

	for key, wc := range sa.pairs {
		if wc.games < MinSynergySamples {
			continue
		}
		m, ok := metrics[key.card]
		if !ok || m.WinRateWhenOwned == nil {
			continue
		}
		winRate := float64(wc.wins) / float64(wc.games)
		delta := winRate - *m.WinRateWhenOwned
		if delta == 0 {
			continue
		}
		entry := SynergyEntry{
			Partner: key.partner,
			Delta:   delta,
			Games:   wc.games,
			WinRate: winRate,
		}
		cs := view(key.card)
		if delta > 0 {
			cs.Synergy = append(cs.Synergy, entry)
		} else {
			cs.AntiSynergy = append(cs.AntiSynergy, entry)
		}
	}

	for _, cs := range results {
		// Synergies strongest first, anti-synergies most negative first;
		// ties break on partner name so output ordering is deterministic.
		sort.Slice(cs.Synergy, func(i, j int) bool {
			if cs.Synergy[i].Delta != cs.Synergy[j].Delta {
				return cs.Synergy[i].Delta > cs.Synergy[j].Delta
			}
			return cs.Synergy[i].Partner < cs.Synergy[j].Partner
		})
		sort.Slice(cs.AntiSynergy, func(i, j int) bool {
			if cs.AntiSynergy[i].Delta != cs.AntiSynergy[j].Delta {
				return cs.AntiSynergy[i].Delta < cs.AntiSynergy[j].Delta
			}
			return cs.AntiSynergy[i].Partner < cs.AntiSynergy[j].Partner
		})
		if len(cs.Synergy) > 0 {
			top := cs.Synergy[0]
			cs.TopSynergy = &top
		}
		if len(cs.AntiSynergy) > 0 {
			top := cs.AntiSynergy[0]
			cs.TopAntiSynergy = &top
		}
	}

	if botCount > 0 {
		baseline := 1 / float64(botCount)
		for card, wc := range sa.day {
			if wc.games < MinSynergySamples {
				continue
			}
			view(card).DayWinRateAdded = ptr(float64(wc.wins)/float64(wc.games) - baseline)
		}
		for card, wc := range sa.night {
			if wc.games < MinSynergySamples {
				continue
			}
			view(card).NightWinRateAdded = ptr(float64(wc.wins)/float64(wc.games) - baseline)
		}
	}

	return results
}
