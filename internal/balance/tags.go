package balance

import (
	"github.com/Daniangio/pigsattack-sub000/internal/deck"
	"github.com/Daniangio/pigsattack-sub000/internal/runlog"
)

// Tag is a balance diagnosis attached to a card. Every card gets exactly
// one primary tag plus zero or more secondary tags.
type Tag string

// Primary tags.
const (
	TagOverpowered  Tag = "Overpowered"
	TagSleeper      Tag = "Sleeper"
	TagTrap         Tag = "Trap"
	TagUnderpowered Tag = "Underpowered"
	TagBalanced     Tag = "Balanced"
	TagSwingy       Tag = "Swingy"
)

// Secondary tags. Utility can also win the primary slot for cheap flexible
// weapons that would otherwise read as Underpowered.
const (
	TagUtility     Tag = "Utility"
	TagSituational Tag = "Situational"
	TagTempo       Tag = "Tempo"
	TagFinisher    Tag = "Finisher"
)

// VP-pattern diagnosis tags, derived from the early vs. late delta-VP bins.
const (
	TagVPSnowball    Tag = "VP Snowball"
	TagVPFinisher    Tag = "VP Finisher"
	TagVPDeltaTrap   Tag = "VP Delta Trap"
	TagVPPanicButton Tag = "VP Panic Button"
	TagVPAnchor      Tag = "VP Anchor"
)

// Utility criterion: a weapon cheap and flexible enough that a weak win
// signal is expected rather than damning.
const (
	utilityMaxCost      = 2
	utilityMinFlex      = 0.9
	utilityMaxOutput    = 3.0
	utilitySevereFactor = 1.6 // wra <= -factor*WRAStrong disqualifies
)

// Timing-tag cutoffs.
const (
	eraShareCutoff   = 0.6
	tempoTurnFloor   = 3.0
	tempoTurnFrac    = 0.35
	finisherTurnMin  = 6.0
	finisherTurnFrac = 0.7
)

// situationalPickFactor scales the pick-rate median for the Situational tag.
const situationalPickFactor = 0.6

// tagSignals are the per-card predicates the rule table evaluates. They are
// computed once so rule order is the only thing that decides precedence.
type tagSignals struct {
	wra      *float64
	pickRate *float64

	deltaUsed    bool // delta average defined with enough samples
	deltaNeutral bool

	positive bool
	negative bool

	pickAtOrAboveMedian bool
	utilityWeapon       bool
	notSevere           bool
}

// tagRule maps a predicate to a primary tag. Rules are evaluated in order;
// the first match wins.
type tagRule struct {
	tag  Tag
	when func(s *tagSignals) bool
}

var primaryRules = []tagRule{
	{TagOverpowered, func(s *tagSignals) bool { return s.positive && s.pickAtOrAboveMedian }},
	{TagSleeper, func(s *tagSignals) bool { return s.positive }},
	{TagTrap, func(s *tagSignals) bool { return s.negative && s.pickAtOrAboveMedian }},
	{TagUtility, func(s *tagSignals) bool { return s.negative && s.utilityWeapon && s.notSevere }},
	{TagUnderpowered, func(s *tagSignals) bool { return s.negative }},
	{TagBalanced, func(s *tagSignals) bool {
		return s.wra != nil && abs(*s.wra) <= WRAWeak && (!s.deltaUsed || s.deltaNeutral)
	}},
	{TagSwingy, func(s *tagSignals) bool { return true }},
}

// Classifier assigns tags to cards. It is a pure function of the card's
// counters and metrics plus the batch-wide thresholds: identical inputs
// always produce identical tags.
type Classifier struct {
	thresholds *Thresholds
	deck       *deck.Definition
}

// NewClassifier creates a classifier bound to one batch's thresholds. The
// deck definition may be nil, in which case no card qualifies as a Utility
// weapon.
func NewClassifier(thresholds *Thresholds, d *deck.Definition) *Classifier {
	return &Classifier{thresholds: thresholds, deck: d}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (cl *Classifier) signals(name string, c *CardCounters, m *CardMetrics) *tagSignals {
	t := cl.thresholds
	s := &tagSignals{wra: m.WinRateAdded, pickRate: m.PickRate}

	s.deltaUsed = m.AvgDeltaVP != nil && c.DeltaVPSamples >= MinDeltaSamples
	deltaPositive := s.deltaUsed && *m.AvgDeltaVP >= t.DeltaStrong
	deltaNegative := s.deltaUsed && *m.AvgDeltaVP <= -t.DeltaStrong
	s.deltaNeutral = s.deltaUsed && abs(*m.AvgDeltaVP) <= t.DeltaWeak

	if m.WinRateAdded != nil {
		wra := *m.WinRateAdded
		s.positive = wra >= t.WRAStrong || (deltaPositive && wra > -t.WRAWeak)
		s.negative = wra <= -t.WRAStrong || (deltaNegative && wra < t.WRAWeak)
		s.notSevere = wra > -utilitySevereFactor*t.WRAStrong
	}

	s.pickAtOrAboveMedian = m.PickRate != nil && *m.PickRate >= t.PickRateMedian
	s.utilityWeapon = cl.isUtilityWeapon(name)
	return s
}

// isUtilityWeapon reports whether the deck defines the card as a low-cost,
// highly flexible weapon with modest per-use output.
func (cl *Classifier) isUtilityWeapon(name string) bool {
	if cl.deck == nil {
		return false
	}
	def, ok := cl.deck.Get(name)
	if !ok {
		return false
	}
	return def.Kind == deck.KindWeapon &&
		def.TotalCost() <= utilityMaxCost &&
		def.Flexibility >= utilityMinFlex &&
		def.PerUseOutput <= utilityMaxOutput
}

// Classify returns the card's tags: primary first, then secondaries in
// fixed rule order.
func (cl *Classifier) Classify(name string, c *CardCounters, m *CardMetrics) []Tag {
	s := cl.signals(name, c, m)

	var primary Tag
	for _, rule := range primaryRules {
		if rule.when(s) {
			primary = rule.tag
			break
		}
	}

	tags := []Tag{primary}
	tags = append(tags, cl.secondaryTags(primary, s, c, m)...)
	return tags
}

func (cl *Classifier) secondaryTags(primary Tag, s *tagSignals, c *CardCounters, m *CardMetrics) []Tag {
	t := cl.thresholds
	var tags []Tag

	if s.pickRate != nil && *s.pickRate < situationalPickFactor*t.PickRateMedian &&
		s.wra != nil && abs(*s.wra) <= t.WRAWeak {
		tags = append(tags, TagSituational)
	}

	if tag, ok := cl.timingTag(c, m); ok {
		tags = append(tags, tag)
	}

	if s.utilityWeapon && primary != TagUtility {
		tags = append(tags, TagUtility)
	}

	if m.AvgDeltaVPEarly != nil && m.AvgDeltaVPLate != nil {
		if tag, ok := DiagnoseVPPattern(*m.AvgDeltaVPEarly, *m.AvgDeltaVPLate, t.DeltaStrong, t.DeltaWeak); ok {
			tags = append(tags, tag)
		}
	}

	return tags
}

// timingTag decides Tempo vs Finisher from when the card tends to be
// bought: by day/night share when the era split is available, by average
// acquisition turn otherwise.
func (cl *Classifier) timingTag(c *CardCounters, m *CardMetrics) (Tag, bool) {
	dayBuys := histogramSum(c.BuyTurnHistogramDay)
	nightBuys := histogramSum(c.BuyTurnHistogramNight)
	if total := dayBuys + nightBuys; total > 0 {
		dayShare := float64(dayBuys) / float64(total)
		if dayShare >= eraShareCutoff {
			return TagTempo, true
		}
		if 1-dayShare >= eraShareCutoff {
			return TagFinisher, true
		}
		return "", false
	}

	if m.AvgBuyTurn == nil {
		return "", false
	}
	gameLength := float64(cl.thresholds.GameLength)
	if gameLength == 0 {
		gameLength = runlog.StandardRounds
	}
	if *m.AvgBuyTurn <= max(tempoTurnFloor, gameLength*tempoTurnFrac) {
		return TagTempo, true
	}
	if *m.AvgBuyTurn >= max(finisherTurnMin, gameLength*finisherTurnFrac) {
		return TagFinisher, true
	}
	return "", false
}

func histogramSum(h map[int]int) int {
	total := 0
	for _, count := range h {
		total += count
	}
	return total
}

// DiagnoseVPPattern names the early-vs-late delta-VP shape of a card. The
// checks run in order and the first match wins; cards with no recognizable
// shape get no VP tag.
func DiagnoseVPPattern(early, late, deltaStrong, deltaWeak float64) (Tag, bool) {
	switch {
	case early >= deltaStrong && late <= deltaWeak:
		return TagVPSnowball, true
	case early <= -deltaWeak && late >= deltaStrong:
		return TagVPFinisher, true
	case early <= -deltaWeak && late <= -deltaWeak:
		return TagVPDeltaTrap, true
	case early <= deltaWeak && late >= deltaWeak:
		return TagVPPanicButton, true
	case early <= -deltaWeak && abs(late) <= deltaWeak:
		return TagVPAnchor, true
	}
	return "", false
}
