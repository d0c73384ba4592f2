package balance

import (
	"reflect"
	"testing"

	"github.com/Daniangio/pigsattack-sub000/internal/runlog"
)

func buy(player string, round int, card string) runlog.ActionEvent {
	return runlog.ActionEvent{
		Type:     runlog.ActionBuyUpgrade,
		Round:    round,
		Era:      runlog.EraForRound(round),
		PlayerID: player,
		Cards:    []runlog.CardRef{{Name: card, Kind: "upgrade"}},
	}
}

func fight(player string, round int, success bool, weapon string) runlog.ActionEvent {
	return runlog.ActionEvent{
		Type:     runlog.ActionFight,
		Round:    round,
		Era:      runlog.EraForRound(round),
		PlayerID: player,
		Success:  success,
		Cards:    []runlog.CardRef{{Name: weapon, Kind: "weapon"}},
	}
}

func stat(user string, vp, wounds int, upgrades []string, weapons ...string) runlog.PlayerFinalStat {
	refs := make([]runlog.WeaponRef, len(weapons))
	for i, w := range weapons {
		refs[i] = runlog.WeaponRef{Name: w}
	}
	return runlog.PlayerFinalStat{
		UserID:   user,
		Score:    vp - wounds,
		VP:       vp,
		Wounds:   wounds,
		Upgrades: upgrades,
		Weapons:  refs,
	}
}

// Scenario: card bought at round 2 (day), game ends at round 10, buyer
// scores 10 against opponents on 4 and 6.
func deltaVPRun() *runlog.RunLog {
	return &runlog.RunLog{
		WinnerID:     "p1",
		BotCount:     3,
		RoundsPlayed: 10,
		Actions: []runlog.ActionEvent{
			buy("p1", 2, "Mud Cannon"),
		},
		FinalStats: []runlog.PlayerFinalStat{
			stat("p1", 10, 0, []string{"Mud Cannon"}),
			stat("p2", 4, 0, nil),
			stat("p3", 6, 0, nil),
		},
	}
}

func TestAddRunDeltaVP(t *testing.T) {
	acc := NewAccumulator()
	acc.AddRun(deltaVPRun())

	c := acc.Counters()["Mud Cannon"]
	if c == nil {
		t.Fatal("no counters for Mud Cannon")
	}

	if c.DeltaVPSamples != 1 {
		t.Fatalf("DeltaVPSamples = %d, want 1", c.DeltaVPSamples)
	}
	if c.DeltaVPTotal != 5 {
		t.Errorf("DeltaVPTotal = %v, want 5 (10 - mean(4,6))", c.DeltaVPTotal)
	}
	// turns_held = 10 - 2 = 8, norm = 5/8.
	if c.DeltaVPNormTotal != 0.625 {
		t.Errorf("DeltaVPNormTotal = %v, want 0.625", c.DeltaVPNormTotal)
	}
	// Acquired on turn 2: early bin.
	if c.DeltaVPEarlyTotal != 5 || c.DeltaVPEarlySamples != 1 {
		t.Errorf("early bin = %v/%d, want 5/1", c.DeltaVPEarlyTotal, c.DeltaVPEarlySamples)
	}
	if c.DeltaVPMidSamples != 0 || c.DeltaVPLateSamples != 0 {
		t.Error("mid/late bins should be empty")
	}

	// Retention: held from round 2 to round 10.
	if c.RetentionTurnsTotal != 8 || c.RetentionSamples != 1 {
		t.Errorf("retention = %d/%d, want 8/1", c.RetentionTurnsTotal, c.RetentionSamples)
	}

	// Purchase bookkeeping: round 2 is day, ratio 2/10.
	if c.TimesBought != 1 || c.BuyTurnsTotal != 2 || c.BuyTurnsSamples != 1 {
		t.Errorf("buys = %d, turns %d/%d", c.TimesBought, c.BuyTurnsTotal, c.BuyTurnsSamples)
	}
	if c.BuyTurnHistogram[2] != 1 || c.BuyTurnHistogramDay[2] != 1 || len(c.BuyTurnHistogramNight) != 0 {
		t.Error("buy turn histograms not split by era")
	}
	if c.BuyTurnsRatioTotal != 0.2 || c.BuyTurnsRatioSamples != 1 {
		t.Errorf("buy ratio = %v/%d, want 0.2/1", c.BuyTurnsRatioTotal, c.BuyTurnsRatioSamples)
	}

	// Ownership: one owning player, who won.
	if c.GamesWithCard != 1 || c.WinsWithCard != 1 {
		t.Errorf("ownership = %d games / %d wins, want 1/1", c.GamesWithCard, c.WinsWithCard)
	}
}

func TestRetentionClampedToOneTurn(t *testing.T) {
	acc := NewAccumulator()
	acc.ObserveRetention("Last Gasp", 10, 10)

	c := acc.Counters()["Last Gasp"]
	if c.RetentionTurnsTotal != 1 {
		t.Errorf("RetentionTurnsTotal = %d, want clamped 1", c.RetentionTurnsTotal)
	}
}

func TestDeltaVPHeldClampedToOneTurn(t *testing.T) {
	acc := NewAccumulator()
	acc.ObserveDeltaVP("Last Gasp", 6, []int{2}, 12, 12)

	c := acc.Counters()["Last Gasp"]
	// delta 4 over max(1, 12-12) = 1 turn.
	if c.DeltaVPNormTotal != 4 {
		t.Errorf("DeltaVPNormTotal = %v, want 4", c.DeltaVPNormTotal)
	}
}

func TestMarketAppearances(t *testing.T) {
	run := &runlog.RunLog{
		WinnerID:     "p1",
		BotCount:     2,
		RoundsPlayed: 5,
		Market: []runlog.MarketSnapshot{
			{Round: 1, Slots: []string{"Rusty Cleaver", "Mud Shield"}},
			{Round: 2, Slots: []string{"Rusty Cleaver", "Mud Shield"}}, // unchanged: no new offers
			{Round: 3, Slots: []string{"", "Mud Shield"}},              // cleaver leaves
			{Round: 4, Slots: []string{"Rusty Cleaver", "Mud Shield"}}, // and re-enters: counts again
			{Round: 5, Slots: []string{"Mud Shield", "Rusty Cleaver"}}, // both change slots
		},
		FinalStats: []runlog.PlayerFinalStat{
			stat("p1", 1, 0, nil),
			stat("p2", 0, 0, nil),
		},
	}

	acc := NewAccumulator()
	acc.AddRun(run)

	if got := acc.Counters()["Rusty Cleaver"].TimesOffered; got != 3 {
		t.Errorf("Rusty Cleaver offered %d times, want 3", got)
	}
	if got := acc.Counters()["Mud Shield"].TimesOffered; got != 2 {
		t.Errorf("Mud Shield offered %d times, want 2", got)
	}
}

func TestMarketSlotStateResetsBetweenRuns(t *testing.T) {
	run := &runlog.RunLog{
		WinnerID:     "p1",
		BotCount:     2,
		RoundsPlayed: 1,
		Market:       []runlog.MarketSnapshot{{Round: 1, Slots: []string{"Rusty Cleaver"}}},
		FinalStats: []runlog.PlayerFinalStat{
			stat("p1", 1, 0, nil),
			stat("p2", 0, 0, nil),
		},
	}

	acc := NewAccumulator()
	acc.AddRun(run)
	acc.AddRun(run)

	// Same card in the same slot, but in a fresh game: offered again.
	if got := acc.Counters()["Rusty Cleaver"].TimesOffered; got != 2 {
		t.Errorf("TimesOffered = %d, want 2", got)
	}
}

func TestRebuySameGameAddsOneSample(t *testing.T) {
	run := deltaVPRun()
	run.Actions = append(run.Actions, buy("p1", 7, "Mud Cannon"))

	acc := NewAccumulator()
	acc.AddRun(run)

	c := acc.Counters()["Mud Cannon"]
	if c.TimesBought != 2 {
		t.Errorf("TimesBought = %d, want 2", c.TimesBought)
	}
	// Delta-VP and retention key on the first acquisition only.
	if c.DeltaVPSamples != 1 {
		t.Errorf("DeltaVPSamples = %d, want 1", c.DeltaVPSamples)
	}
	if c.RetentionSamples != 1 {
		t.Errorf("RetentionSamples = %d, want 1", c.RetentionSamples)
	}
	if c.DeltaVPEarlySamples != 1 || c.DeltaVPMidSamples != 0 {
		t.Error("delta bin should follow the first buy round")
	}
}

func TestFightCountsOnlySuccesses(t *testing.T) {
	run := &runlog.RunLog{
		WinnerID:     "p1",
		BotCount:     2,
		RoundsPlayed: 9,
		Actions: []runlog.ActionEvent{
			fight("p1", 8, true, "Rusty Cleaver"),
			fight("p1", 9, false, "Rusty Cleaver"),
			{Type: runlog.ActionActivateCard, Round: 5, Era: runlog.EraDay, PlayerID: "p1",
				Cards: []runlog.CardRef{{Name: "Mud Shield", Kind: "upgrade"}}},
		},
		FinalStats: []runlog.PlayerFinalStat{
			stat("p1", 5, 0, []string{"Mud Shield"}, "Rusty Cleaver"),
			stat("p2", 2, 0, nil),
		},
	}

	acc := NewAccumulator()
	acc.AddRun(run)

	if got := acc.Counters()["Rusty Cleaver"].TimesUsed; got != 1 {
		t.Errorf("TimesUsed = %d, want 1 (failed fights don't count)", got)
	}
	if got := acc.Counters()["Mud Shield"].TimesActivated; got != 1 {
		t.Errorf("TimesActivated = %d, want 1", got)
	}
}

func TestOwnershipOncePerPlayer(t *testing.T) {
	run := &runlog.RunLog{
		WinnerID:     "p1",
		BotCount:     2,
		RoundsPlayed: 6,
		FinalStats: []runlog.PlayerFinalStat{
			// Upgrade and weapon with the same name count once.
			stat("p1", 8, 0, []string{"Twin Fang"}, "Twin Fang"),
			stat("p2", 3, 0, []string{"Twin Fang"}),
		},
	}

	acc := NewAccumulator()
	acc.AddRun(run)

	c := acc.Counters()["Twin Fang"]
	if c.GamesWithCard != 2 {
		t.Errorf("GamesWithCard = %d, want 2 (one per owning player)", c.GamesWithCard)
	}
	if c.WinsWithCard != 1 {
		t.Errorf("WinsWithCard = %d, want 1", c.WinsWithCard)
	}
}

// makeRuns builds a varied fixture set for order/sharding equivalence
// checks. Runs last 14 rounds and buys land on odd rounds, so the derived
// ratios are fractions like 3/14 with no finite binary representation; an
// order-dependent float accumulation would fail the equivalence tests.
func makeRuns() []*runlog.RunLog {
	cards := []string{"Rusty Cleaver", "Mud Shield", "Golden Trough", "Twin Fang"}
	buyRounds := []int{3, 5, 9, 13}
	var runs []*runlog.RunLog
	for i := 0; i < 12; i++ {
		cardA := cards[i%len(cards)]
		cardB := cards[(i+1)%len(cards)]
		winner := "p1"
		if i%3 == 0 {
			winner = "p2"
		}
		runs = append(runs, &runlog.RunLog{
			WinnerID:     winner,
			BotCount:     3,
			RoundsPlayed: 14,
			Actions: []runlog.ActionEvent{
				buy("p1", buyRounds[i%4], cardA),
				buy("p2", buyRounds[(i+2)%4], cardB),
				fight("p1", 7, i%2 == 0, cardA),
			},
			Market: []runlog.MarketSnapshot{
				{Round: 1, Slots: []string{cardA, cardB, ""}},
				{Round: 2, Slots: []string{cardA, "", cardB}},
			},
			FinalStats: []runlog.PlayerFinalStat{
				stat("p1", 8+i, i%4, []string{cardA}),
				stat("p2", 6, 1, []string{cardB}),
				stat("p3", 4, 2, nil),
			},
		})
	}
	return runs
}

func TestAccumulationOrderIndependent(t *testing.T) {
	runs := makeRuns()

	forward := NewAccumulator()
	for _, run := range runs {
		forward.AddRun(run)
	}

	backward := NewAccumulator()
	for i := len(runs) - 1; i >= 0; i-- {
		backward.AddRun(runs[i])
	}

	if !reflect.DeepEqual(forward.Counters(), backward.Counters()) {
		t.Error("accumulating in reverse order changed the counters")
	}
}

func TestShardAndMergeEqualsSequential(t *testing.T) {
	runs := makeRuns()

	sequential := NewAccumulator()
	for _, run := range runs {
		sequential.AddRun(run)
	}

	partitions := [][]int{
		{4, 4, 4},
		{1, 11},
		{7, 5},
		{3, 3, 3, 3},
	}
	for _, sizes := range partitions {
		merged := NewAccumulator()
		start := 0
		for _, size := range sizes {
			shard := NewAccumulator()
			for _, run := range runs[start : start+size] {
				shard.AddRun(run)
			}
			merged.Merge(shard)
			start += size
		}

		if !reflect.DeepEqual(sequential.Counters(), merged.Counters()) {
			t.Errorf("partition %v: merged counters differ from sequential", sizes)
		}
		if merged.Games() != sequential.Games() {
			t.Errorf("partition %v: games = %d, want %d", sizes, merged.Games(), sequential.Games())
		}
		if merged.BotCount() != sequential.BotCount() {
			t.Errorf("partition %v: bot count = %d, want %d", sizes, merged.BotCount(), sequential.BotCount())
		}
		if merged.GameLength() != sequential.GameLength() {
			t.Errorf("partition %v: game length = %d, want %d", sizes, merged.GameLength(), sequential.GameLength())
		}
	}
}

func TestStridedShardsMatchSequentialExactly(t *testing.T) {
	// Every fractional sample here is a seventh or a third: buy and
	// retention ratios have denominator 7, delta-VP means denominator 3.
	// None are representable in binary, so summing shard floats in a
	// different association than the sequential pass would diverge in the
	// last bits; exact counters must match bit for bit anyway.
	var runs []*runlog.RunLog
	for i := 0; i < 8; i++ {
		runs = append(runs, &runlog.RunLog{
			WinnerID:     "p1",
			BotCount:     4,
			RoundsPlayed: 7,
			Actions: []runlog.ActionEvent{
				buy("p1", 1+i%6, "Rusty Cleaver"),
			},
			FinalStats: []runlog.PlayerFinalStat{
				stat("p1", 6+i, 0, []string{"Rusty Cleaver"}),
				stat("p2", 4, 1, nil),
				stat("p3", 3, 0, nil),
				stat("p4", 2, 1, nil),
			},
		})
	}

	sequential := NewAccumulator()
	for _, run := range runs {
		sequential.AddRun(run)
	}
	seq := sequential.Counters()["Rusty Cleaver"]

	for _, workers := range []int{2, 3, 5} {
		shards := make([]*Accumulator, workers)
		for w := range shards {
			shards[w] = NewAccumulator()
		}
		for i, run := range runs {
			shards[i%workers].AddRun(run)
		}
		merged := shards[0]
		for _, shard := range shards[1:] {
			merged.Merge(shard)
		}

		got := merged.Counters()["Rusty Cleaver"]
		if got.BuyTurnsRatioTotal != seq.BuyTurnsRatioTotal {
			t.Errorf("%d shards: BuyTurnsRatioTotal = %.17g, want %.17g",
				workers, got.BuyTurnsRatioTotal, seq.BuyTurnsRatioTotal)
		}
		if got.DeltaVPTotal != seq.DeltaVPTotal {
			t.Errorf("%d shards: DeltaVPTotal = %.17g, want %.17g",
				workers, got.DeltaVPTotal, seq.DeltaVPTotal)
		}
		if got.RetentionTurnsRatioTotal != seq.RetentionTurnsRatioTotal {
			t.Errorf("%d shards: RetentionTurnsRatioTotal = %.17g, want %.17g",
				workers, got.RetentionTurnsRatioTotal, seq.RetentionTurnsRatioTotal)
		}
		if !reflect.DeepEqual(got, seq) {
			t.Errorf("%d shards: counters differ from sequential", workers)
		}
	}
}

func TestBotCountModal(t *testing.T) {
	acc := NewAccumulator()
	for i := 0; i < 3; i++ {
		run := deltaVPRun()
		acc.AddRun(run)
	}
	twoBot := &runlog.RunLog{
		WinnerID:     "p1",
		BotCount:     2,
		RoundsPlayed: 6,
		FinalStats: []runlog.PlayerFinalStat{
			stat("p1", 3, 0, nil),
			stat("p2", 1, 0, nil),
		},
	}
	acc.AddRun(twoBot)

	if got := acc.BotCount(); got != 3 {
		t.Errorf("BotCount() = %d, want modal 3", got)
	}
}

func TestEmptyAccumulatorDefaults(t *testing.T) {
	acc := NewAccumulator()
	if acc.BotCount() != 0 {
		t.Errorf("BotCount() = %d, want 0", acc.BotCount())
	}
	if acc.GameLength() != runlog.StandardRounds {
		t.Errorf("GameLength() = %d, want %d", acc.GameLength(), runlog.StandardRounds)
	}
}
