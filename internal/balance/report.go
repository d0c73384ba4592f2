package balance

import (
	"sort"
	"time"
)

// CardReport is the full balance view of one card: raw counters, derived
// metrics, tags and synergies. Counter and derived field names are the wire
// names existing report consumers expect.
type CardReport struct {
	*CardCounters
	*CardMetrics

	// CardUsage is a legacy scalar (activations + weapon uses) kept for old
	// consumers. It never drives tag decisions.
	CardUsage int `json:"card_usage"`

	// UnknownCard flags a card that appeared in run logs but is absent from
	// the deck definition. Its stats still aggregate normally.
	UnknownCard bool `json:"unknown_card,omitempty"`

	Tags []Tag `json:"tags"`

	Synergy        []SynergyEntry `json:"synergy"`
	AntiSynergy    []SynergyEntry `json:"anti_synergy"`
	TopSynergy     *SynergyEntry  `json:"top_synergy,omitempty"`
	TopAntiSynergy *SynergyEntry  `json:"top_anti_synergy,omitempty"`

	DayWinRateAdded   *float64 `json:"day_win_rate_added"`
	NightWinRateAdded *float64 `json:"night_win_rate_added"`
}

// CardBalanceReport is the analyzer's output for one batch of runs.
type CardBalanceReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	TotalGames  int `json:"total_games"`
	DroppedRuns int `json:"dropped_runs"`
	BotCount    int `json:"bot_count"`
	GameLength  int `json:"game_length"`

	Thresholds *Thresholds `json:"thresholds"`

	// UnknownCards lists cards seen in runs but missing from the deck
	// definition, sorted by name.
	UnknownCards []string `json:"unknown_cards,omitempty"`

	Cards map[string]*CardReport `json:"cards"`
}

// CardNames returns the report's card names in sorted order.
func (r *CardBalanceReport) CardNames() []string {
	names := make([]string, 0, len(r.Cards))
	for name := range r.Cards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
