package runlog

import (
	"errors"
	"fmt"
)

// ErrMalformedRun marks a record that failed schema validation. Callers skip
// such records and keep processing the batch.
var ErrMalformedRun = errors.New("malformed run log")

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedRun, fmt.Sprintf(format, args...))
}

var validActionTypes = map[string]bool{
	ActionBuyUpgrade:   true,
	ActionBuyWeapon:    true,
	ActionActivateCard: true,
	ActionFight:        true,
}

// Normalize validates a raw run record and rewrites it into canonical form.
// It returns ErrMalformedRun (wrapped with detail) when the record cannot be
// trusted. Normalization fixes what can be fixed without guessing:
// per-action eras are recomputed from the round, and final scores are
// recomputed as vp - wounds.
func Normalize(run *RunLog) (*RunLog, error) {
	if run == nil {
		return nil, malformed("nil record")
	}
	if run.BotCount < 2 {
		return nil, malformed("bot_count %d, need at least 2", run.BotCount)
	}
	if len(run.FinalStats) == 0 {
		return nil, malformed("no final stats")
	}
	if len(run.FinalStats) != run.BotCount {
		return nil, malformed("final stats for %d players, bot_count %d", len(run.FinalStats), run.BotCount)
	}
	if run.WinnerID == "" {
		return nil, malformed("empty winner_id")
	}

	winnerSeen := false
	for i := range run.FinalStats {
		fs := &run.FinalStats[i]
		if fs.UserID == "" {
			return nil, malformed("final stat %d has empty user_id", i)
		}
		if fs.UserID == run.WinnerID {
			winnerSeen = true
		}
		fs.Score = fs.VP - fs.Wounds
	}
	if !winnerSeen {
		return nil, malformed("winner %q not present in final stats", run.WinnerID)
	}

	for i := range run.Actions {
		a := &run.Actions[i]
		if !validActionTypes[a.Type] {
			return nil, malformed("action %d has unknown type %q", i, a.Type)
		}
		if a.Round < 1 {
			return nil, malformed("action %d has round %d", i, a.Round)
		}
		if a.PlayerID == "" {
			return nil, malformed("action %d has empty player_id", i)
		}
		for _, c := range a.Cards {
			if c.Name == "" {
				return nil, malformed("action %d references unnamed card", i)
			}
		}
		a.Era = EraForRound(a.Round)
	}

	for i, m := range run.Market {
		if m.Round < 1 {
			return nil, malformed("market snapshot %d has round %d", i, m.Round)
		}
	}

	return run, nil
}
