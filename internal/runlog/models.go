// Package runlog ingests completed bot-simulation game records and
// normalizes them into canonical run logs for balance analysis.
package runlog

// Action types emitted by the simulation engine.
const (
	ActionBuyUpgrade   = "buy_upgrade"
	ActionBuyWeapon    = "buy_weapon"
	ActionActivateCard = "activate_card"
	ActionFight        = "fight"
)

// Era names. Rounds 1-6 are day, 7-12 are night; the round counter is
// absolute and spans both eras.
const (
	EraDay   = "day"
	EraNight = "night"
)

// StandardRounds is the length of a full game. Runs can end early; a run
// that carries no round information at all is assumed to have gone the
// distance.
const StandardRounds = 12

// DayRounds is the last round of the day era.
const DayRounds = 6

// EraForRound returns the era a round belongs to.
func EraForRound(round int) string {
	if round <= DayRounds {
		return EraDay
	}
	return EraNight
}

// RunLog is one completed simulated game. Immutable once normalized.
type RunLog struct {
	WinnerID     string            `json:"winner_id"`
	BotCount     int               `json:"bot_count"`
	RoundsPlayed int               `json:"rounds_played,omitempty"`
	Actions      []ActionEvent     `json:"actions"`
	FinalStats   []PlayerFinalStat `json:"final_stats"`
	Market       []MarketSnapshot  `json:"market,omitempty"`
}

// ActionEvent is a single bot action within a run.
type ActionEvent struct {
	Type     string    `json:"type"`
	Round    int       `json:"round"`
	Era      string    `json:"era"`
	PlayerID string    `json:"player_id"`
	Success  bool      `json:"success,omitempty"` // fight outcome; only successful fights count as weapon uses
	Cards    []CardRef `json:"cards"`
}

// CardRef identifies a card touched by an action.
type CardRef struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// PlayerFinalStat is one bot's end-of-game state.
type PlayerFinalStat struct {
	UserID   string      `json:"user_id"`
	Score    int         `json:"score"`
	VP       int         `json:"vp"`
	Wounds   int         `json:"wounds"`
	Upgrades []string    `json:"upgrades"`
	Weapons  []WeaponRef `json:"weapons"`
}

// WeaponRef is a weapon in a player's end-of-game arsenal.
type WeaponRef struct {
	Name string `json:"name"`
}

// MarketSnapshot is the market row at the start of a round. An empty slot
// value means the slot held no card.
type MarketSnapshot struct {
	Round int      `json:"round"`
	Slots []string `json:"slots"`
}

// TotalRounds returns the number of rounds the run lasted. It prefers the
// recorded rounds_played, then the highest round seen in actions or market
// snapshots, then the standard game length.
func (r *RunLog) TotalRounds() int {
	if r.RoundsPlayed > 0 {
		return r.RoundsPlayed
	}
	max := 0
	for _, a := range r.Actions {
		if a.Round > max {
			max = a.Round
		}
	}
	for _, m := range r.Market {
		if m.Round > max {
			max = m.Round
		}
	}
	if max == 0 {
		return StandardRounds
	}
	return max
}
