// Package balance turns batches of simulated run logs into per-card balance
// diagnostics: offer/buy rates, win-rate impact, acquisition-timing value
// shifts, rule-based tags and pairwise synergies.
package balance

import (
	"sort"

	"github.com/Daniangio/pigsattack-sub000/internal/runlog"
)

// Delta-VP timing bins by acquisition round.
const (
	earlyBinEnd = 4
	midBinEnd   = 8
)

// CardCounters holds the raw event counters for one card, accumulated
// across every run in a batch. Field names are the wire names consumed by
// downstream report readers.
type CardCounters struct {
	TimesOffered   int `json:"times_offered"`
	TimesBought    int `json:"times_bought"`
	TimesActivated int `json:"times_activated"`
	TimesUsed      int `json:"times_used"`

	WinsWithCard  int `json:"wins_with_card"`
	GamesWithCard int `json:"games_with_card"`

	BuyTurnsTotal         int         `json:"buy_turns_total"`
	BuyTurnsSamples       int         `json:"buy_turns_samples"`
	BuyTurnHistogram      map[int]int `json:"buy_turn_histogram"`
	BuyTurnHistogramDay   map[int]int `json:"buy_turn_histogram_day"`
	BuyTurnHistogramNight map[int]int `json:"buy_turn_histogram_night"`
	BuyTurnsRatioTotal    float64     `json:"buy_turns_ratio_total"`
	BuyTurnsRatioSamples  int         `json:"buy_turns_ratio_samples"`

	RetentionTurnsTotal        int     `json:"retention_turns_total"`
	RetentionSamples           int     `json:"retention_samples"`
	RetentionTurnsRatioTotal   float64 `json:"retention_turns_ratio_total"`
	RetentionTurnsRatioSamples int     `json:"retention_turns_ratio_samples"`

	DeltaVPTotal       float64 `json:"delta_vp_total"`
	DeltaVPSamples     int     `json:"delta_vp_samples"`
	DeltaVPNormTotal   float64 `json:"delta_vp_norm_total"`
	DeltaVPNormSamples int     `json:"delta_vp_norm_samples"`

	DeltaVPEarlyTotal   float64 `json:"delta_vp_early_total"`
	DeltaVPEarlySamples int     `json:"delta_vp_early_samples"`
	DeltaVPMidTotal     float64 `json:"delta_vp_mid_total"`
	DeltaVPMidSamples   int     `json:"delta_vp_mid_samples"`
	DeltaVPLateTotal    float64 `json:"delta_vp_late_total"`
	DeltaVPLateSamples  int     `json:"delta_vp_late_samples"`
}

func newCardCounters() *CardCounters {
	return &CardCounters{
		BuyTurnHistogram:      make(map[int]int),
		BuyTurnHistogramDay:   make(map[int]int),
		BuyTurnHistogramNight: make(map[int]int),
	}
}

// ratioKey identifies one exact rational sample value.
type ratioKey struct {
	num int
	den int
}

// ratioSum accumulates rational samples as an integer histogram. Keeping the
// samples in integer form until rendering is what makes shard merging exact:
// merging histograms is plain integer addition, and the float total is a
// pure function of the final histogram, so any partition of the run set
// renders bit-identical totals.
type ratioSum map[ratioKey]int

func (r ratioSum) add(num, den int) {
	r[ratioKey{num: num, den: den}]++
}

func (r ratioSum) merge(other ratioSum) {
	for key, count := range other {
		r[key] += count
	}
}

func (r ratioSum) samples() int {
	total := 0
	for _, count := range r {
		total += count
	}
	return total
}

// total renders the float sum, walking keys in a fixed order.
func (r ratioSum) total() float64 {
	keys := make([]ratioKey, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].den != keys[j].den {
			return keys[i].den < keys[j].den
		}
		return keys[i].num < keys[j].num
	})

	total := 0.0
	for _, key := range keys {
		total += float64(key.num*r[key]) / float64(key.den)
	}
	return total
}

// cardState is the accumulation form of one card's counters. Everything in
// it is integer, so merging states over any partition of a run set is exact.
type cardState struct {
	timesOffered   int
	timesBought    int
	timesActivated int
	timesUsed      int

	winsWithCard  int
	gamesWithCard int

	buyTurnsTotal         int
	buyTurnsSamples       int
	buyTurnHistogram      map[int]int
	buyTurnHistogramDay   map[int]int
	buyTurnHistogramNight map[int]int
	buyTurnsRatio         ratioSum

	retentionTurnsTotal int
	retentionSamples    int
	retentionTurnsRatio ratioSum

	deltaVP      ratioSum
	deltaVPNorm  ratioSum
	deltaVPEarly ratioSum
	deltaVPMid   ratioSum
	deltaVPLate  ratioSum
}

func newCardState() *cardState {
	return &cardState{
		buyTurnHistogram:      make(map[int]int),
		buyTurnHistogramDay:   make(map[int]int),
		buyTurnHistogramNight: make(map[int]int),
		buyTurnsRatio:         make(ratioSum),
		retentionTurnsRatio:   make(ratioSum),
		deltaVP:               make(ratioSum),
		deltaVPNorm:           make(ratioSum),
		deltaVPEarly:          make(ratioSum),
		deltaVPMid:            make(ratioSum),
		deltaVPLate:           make(ratioSum),
	}
}

func (s *cardState) merge(other *cardState) {
	s.timesOffered += other.timesOffered
	s.timesBought += other.timesBought
	s.timesActivated += other.timesActivated
	s.timesUsed += other.timesUsed
	s.winsWithCard += other.winsWithCard
	s.gamesWithCard += other.gamesWithCard
	s.buyTurnsTotal += other.buyTurnsTotal
	s.buyTurnsSamples += other.buyTurnsSamples
	for round, count := range other.buyTurnHistogram {
		s.buyTurnHistogram[round] += count
	}
	for round, count := range other.buyTurnHistogramDay {
		s.buyTurnHistogramDay[round] += count
	}
	for round, count := range other.buyTurnHistogramNight {
		s.buyTurnHistogramNight[round] += count
	}
	s.buyTurnsRatio.merge(other.buyTurnsRatio)
	s.retentionTurnsTotal += other.retentionTurnsTotal
	s.retentionSamples += other.retentionSamples
	s.retentionTurnsRatio.merge(other.retentionTurnsRatio)
	s.deltaVP.merge(other.deltaVP)
	s.deltaVPNorm.merge(other.deltaVPNorm)
	s.deltaVPEarly.merge(other.deltaVPEarly)
	s.deltaVPMid.merge(other.deltaVPMid)
	s.deltaVPLate.merge(other.deltaVPLate)
}

func copyHistogram(h map[int]int) map[int]int {
	out := make(map[int]int, len(h))
	for round, count := range h {
		out[round] = count
	}
	return out
}

// render materializes the wire-shaped counters from the integer state.
func (s *cardState) render() *CardCounters {
	return &CardCounters{
		TimesOffered:   s.timesOffered,
		TimesBought:    s.timesBought,
		TimesActivated: s.timesActivated,
		TimesUsed:      s.timesUsed,

		WinsWithCard:  s.winsWithCard,
		GamesWithCard: s.gamesWithCard,

		BuyTurnsTotal:         s.buyTurnsTotal,
		BuyTurnsSamples:       s.buyTurnsSamples,
		BuyTurnHistogram:      copyHistogram(s.buyTurnHistogram),
		BuyTurnHistogramDay:   copyHistogram(s.buyTurnHistogramDay),
		BuyTurnHistogramNight: copyHistogram(s.buyTurnHistogramNight),
		BuyTurnsRatioTotal:    s.buyTurnsRatio.total(),
		BuyTurnsRatioSamples:  s.buyTurnsRatio.samples(),

		RetentionTurnsTotal:        s.retentionTurnsTotal,
		RetentionSamples:           s.retentionSamples,
		RetentionTurnsRatioTotal:   s.retentionTurnsRatio.total(),
		RetentionTurnsRatioSamples: s.retentionTurnsRatio.samples(),

		DeltaVPTotal:       s.deltaVP.total(),
		DeltaVPSamples:     s.deltaVP.samples(),
		DeltaVPNormTotal:   s.deltaVPNorm.total(),
		DeltaVPNormSamples: s.deltaVPNorm.samples(),

		DeltaVPEarlyTotal:   s.deltaVPEarly.total(),
		DeltaVPEarlySamples: s.deltaVPEarly.samples(),
		DeltaVPMidTotal:     s.deltaVPMid.total(),
		DeltaVPMidSamples:   s.deltaVPMid.samples(),
		DeltaVPLateTotal:    s.deltaVPLate.total(),
		DeltaVPLateSamples:  s.deltaVPLate.samples(),
	}
}

// Accumulator folds run logs into per-card counters. It is a plain value
// with no I/O and no global state. Fractional samples are held as integer
// numerator/denominator histograms until Counters renders them, so
// independent accumulators over disjoint run partitions merge into exactly
// the counters a single sequential pass would produce, bit for bit.
type Accumulator struct {
	cards     map[string]*cardState
	botCounts map[int]int // bot_count -> number of runs
	games     int
	maxRounds int

	// marketSlots tracks the current occupant of each market slot within
	// the run being added, so a card sitting in a slot across rounds is
	// offered once, not once per round. Reset at the start of every run.
	marketSlots map[int]string
}

// NewAccumulator creates an empty accumulator for one analysis batch.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		cards:       make(map[string]*cardState),
		botCounts:   make(map[int]int),
		marketSlots: make(map[int]string),
	}
}

func (a *Accumulator) card(name string) *cardState {
	s, ok := a.cards[name]
	if !ok {
		s = newCardState()
		a.cards[name] = s
	}
	return s
}

// ObserveMarketAppearance records a card appearing in a market slot. A slot
// transition to this card counts as one offer; the card sitting in the slot
// on later snapshots does not. Re-entering the slot after leaving counts
// again.
func (a *Accumulator) ObserveMarketAppearance(name string, slot int) {
	if a.marketSlots[slot] == name {
		return
	}
	a.marketSlots[slot] = name
	a.card(name).timesOffered++
}

// ObservePurchase records a buy at the given round. The timing ratio is
// round/totalRounds, so 0 < ratio <= 1 with earlier buys closer to 0.
func (a *Accumulator) ObservePurchase(name string, round int, era string, totalRounds int) {
	s := a.card(name)
	s.timesBought++
	s.buyTurnHistogram[round]++
	if era == runlog.EraDay {
		s.buyTurnHistogramDay[round]++
	} else {
		s.buyTurnHistogramNight[round]++
	}
	s.buyTurnsTotal += round
	s.buyTurnsSamples++
	if totalRounds > 0 {
		s.buyTurnsRatio.add(round, totalRounds)
	}
}

// ObserveActivation records an upgrade activation.
func (a *Accumulator) ObserveActivation(name string) {
	a.card(name).timesActivated++
}

// ObserveWeaponUse records a weapon being used in a successful fight.
func (a *Accumulator) ObserveWeaponUse(name string) {
	a.card(name).timesUsed++
}

// ObserveRetention records how long a bought card was held. Holding time is
// clamped to at least one turn.
func (a *Accumulator) ObserveRetention(name string, buyRound, finalRound int) {
	turns := finalRound - buyRound
	if turns < 1 {
		turns = 1
	}
	s := a.card(name)
	s.retentionTurnsTotal += turns
	s.retentionSamples++
	if finalRound > 0 {
		s.retentionTurnsRatio.add(turns, finalRound)
	}
}

// ObserveDeltaVP records the buyer's score advantage over the mean opponent
// score, attributed to the card and binned by acquisition timing. Scores are
// integers, so the delta is the exact rational
// (buyerScore*n - sum(opponents)) / n.
func (a *Accumulator) ObserveDeltaVP(name string, buyerScore int, opponentScores []int, turnAcquired, totalTurns int) {
	n := len(opponentScores)
	if n == 0 {
		return
	}
	sum := 0
	for _, score := range opponentScores {
		sum += score
	}
	num := buyerScore*n - sum

	turnsHeld := totalTurns - turnAcquired
	if turnsHeld < 1 {
		turnsHeld = 1
	}

	s := a.card(name)
	s.deltaVP.add(num, n)
	s.deltaVPNorm.add(num, n*turnsHeld)

	switch {
	case turnAcquired <= earlyBinEnd:
		s.deltaVPEarly.add(num, n)
	case turnAcquired <= midBinEnd:
		s.deltaVPMid.add(num, n)
	default:
		s.deltaVPLate.add(num, n)
	}
}

// ObserveOwnershipOutcome records one game owned by one player, and whether
// that player won. Callers must invoke it at most once per (game, player).
func (a *Accumulator) ObserveOwnershipOutcome(name string, won bool) {
	s := a.card(name)
	s.gamesWithCard++
	if won {
		s.winsWithCard++
	}
}

// playerCard keys dedup state within a single run.
type playerCard struct {
	player string
	card   string
}

// AddRun folds one normalized run into the counters.
func (a *Accumulator) AddRun(run *runlog.RunLog) {
	a.games++
	a.botCounts[run.BotCount]++
	totalRounds := run.TotalRounds()
	if totalRounds > a.maxRounds {
		a.maxRounds = totalRounds
	}

	// Market slots reset between games.
	a.marketSlots = make(map[int]string)
	for _, snap := range run.Market {
		for slot, occupant := range snap.Slots {
			if occupant == "" {
				delete(a.marketSlots, slot)
				continue
			}
			a.ObserveMarketAppearance(occupant, slot)
		}
	}

	// First acquisition round per (player, card). Re-buys in the same game
	// by the same player do not add timing, retention or delta-VP samples.
	firstBuy := make(map[playerCard]int)

	for _, action := range run.Actions {
		switch action.Type {
		case runlog.ActionBuyUpgrade, runlog.ActionBuyWeapon:
			for _, card := range action.Cards {
				a.ObservePurchase(card.Name, action.Round, action.Era, totalRounds)
				key := playerCard{action.PlayerID, card.Name}
				if prev, ok := firstBuy[key]; !ok || action.Round < prev {
					firstBuy[key] = action.Round
				}
			}
		case runlog.ActionActivateCard:
			for _, card := range action.Cards {
				a.ObserveActivation(card.Name)
			}
		case runlog.ActionFight:
			if !action.Success {
				continue
			}
			for _, card := range action.Cards {
				a.ObserveWeaponUse(card.Name)
			}
		}
	}

	scores := make(map[string]int, len(run.FinalStats))
	for _, fs := range run.FinalStats {
		scores[fs.UserID] = fs.Score
	}

	for key, buyRound := range firstBuy {
		a.ObserveRetention(key.card, buyRound, totalRounds)

		buyerScore, ok := scores[key.player]
		if !ok {
			continue
		}
		opponents := make([]int, 0, len(run.FinalStats)-1)
		for _, fs := range run.FinalStats {
			if fs.UserID != key.player {
				opponents = append(opponents, fs.Score)
			}
		}
		a.ObserveDeltaVP(key.card, buyerScore, opponents, buyRound, totalRounds)
	}

	// Ownership is judged on end-of-game state: installed upgrades plus
	// weapons still in the arsenal.
	for _, fs := range run.FinalStats {
		won := fs.UserID == run.WinnerID
		for _, name := range ownedCards(&fs) {
			a.ObserveOwnershipOutcome(name, won)
		}
	}
}

// ownedCards returns the distinct cards a player owned at game end.
func ownedCards(fs *runlog.PlayerFinalStat) []string {
	seen := make(map[string]bool, len(fs.Upgrades)+len(fs.Weapons))
	owned := make([]string, 0, len(fs.Upgrades)+len(fs.Weapons))
	for _, name := range fs.Upgrades {
		if name != "" && !seen[name] {
			seen[name] = true
			owned = append(owned, name)
		}
	}
	for _, weapon := range fs.Weapons {
		if weapon.Name != "" && !seen[weapon.Name] {
			seen[weapon.Name] = true
			owned = append(owned, weapon.Name)
		}
	}
	return owned
}

// Merge folds another accumulator's state into this one by element-wise
// integer summation. Merging partial accumulators over any partition of a
// run set is exactly equivalent to accumulating the runs sequentially.
func (a *Accumulator) Merge(other *Accumulator) {
	for name, state := range other.cards {
		a.card(name).merge(state)
	}
	for botCount, runs := range other.botCounts {
		a.botCounts[botCount] += runs
	}
	a.games += other.games
	if other.maxRounds > a.maxRounds {
		a.maxRounds = other.maxRounds
	}
}

// Counters renders the accumulated per-card counters. The result is a pure
// function of the integer state, so equal accumulators render equal
// counters regardless of how their runs were sharded.
func (a *Accumulator) Counters() map[string]*CardCounters {
	counters := make(map[string]*CardCounters, len(a.cards))
	for name, state := range a.cards {
		counters[name] = state.render()
	}
	return counters
}

// Games returns the number of runs accumulated.
func (a *Accumulator) Games() int {
	return a.games
}

// BotCount returns the modal bot count over the accumulated runs, or 0 when
// the batch is empty.
func (a *Accumulator) BotCount() int {
	best, bestRuns := 0, 0
	for botCount, runs := range a.botCounts {
		if runs > bestRuns || (runs == bestRuns && botCount < best) {
			best, bestRuns = botCount, runs
		}
	}
	return best
}

// GameLength returns the longest run seen, defaulting to the standard game
// length for empty batches.
func (a *Accumulator) GameLength() int {
	if a.maxRounds == 0 {
		return runlog.StandardRounds
	}
	return a.maxRounds
}
