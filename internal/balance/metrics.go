package balance

// CardMetrics is the derived, read-only view of one card's counters. A nil
// field means the underlying denominator had no samples; a missing metric is
// never reported as zero.
type CardMetrics struct {
	PickRate             *float64 `json:"pick_rate"`
	WinRateWhenOwned     *float64 `json:"win_rate_when_owned"`
	WinRateAdded         *float64 `json:"win_rate_added"`
	WinRateAddedWeighted *float64 `json:"win_rate_added_weighted"`
	AvgBuyTurn           *float64 `json:"avg_buy_turn"`
	AvgBuyTurnRatio      *float64 `json:"avg_buy_turn_ratio"`
	AvgRetentionTurns    *float64 `json:"avg_retention_turns"`
	AvgDeltaVP           *float64 `json:"avg_delta_vp"`
	AvgDeltaVPNorm       *float64 `json:"avg_delta_vp_norm"`
	AvgDeltaVPEarly      *float64 `json:"avg_delta_vp_early"`
	AvgDeltaVPMid        *float64 `json:"avg_delta_vp_mid"`
	AvgDeltaVPLate       *float64 `json:"avg_delta_vp_late"`
	PowerScore           *float64 `json:"power_score"`
}

// Timing weights for the power score. Early impact counts for more than
// late impact.
const (
	powerWeightEarly = 1.2
	powerWeightMid   = 1.0
	powerWeightLate  = 0.8
)

func ptr(v float64) *float64 { return &v }

func ratio(total float64, samples int) *float64 {
	if samples <= 0 {
		return nil
	}
	return ptr(total / float64(samples))
}

// DeriveMetrics converts accumulated counters into per-card ratios and
// averages. botCount is the batch-wide player count used for the baseline
// win rate of 1/botCount.
func DeriveMetrics(c *CardCounters, botCount int) *CardMetrics {
	m := &CardMetrics{}

	if c.TimesOffered > 0 {
		m.PickRate = ptr(float64(c.TimesBought) / float64(c.TimesOffered))
	}

	if c.GamesWithCard > 0 && botCount > 0 {
		owned := float64(c.WinsWithCard) / float64(c.GamesWithCard)
		m.WinRateWhenOwned = ptr(owned)
		m.WinRateAdded = ptr(owned - 1/float64(botCount))
	}

	m.AvgBuyTurn = ratio(float64(c.BuyTurnsTotal), c.BuyTurnsSamples)
	m.AvgBuyTurnRatio = ratio(c.BuyTurnsRatioTotal, c.BuyTurnsRatioSamples)
	m.AvgRetentionTurns = ratio(float64(c.RetentionTurnsTotal), c.RetentionSamples)

	// Earlier acquisition (smaller timing ratio) preserves more of the raw
	// win-rate-added signal.
	if m.WinRateAdded != nil && m.AvgBuyTurnRatio != nil {
		m.WinRateAddedWeighted = ptr(*m.WinRateAdded * (1 - *m.AvgBuyTurnRatio))
	}

	m.AvgDeltaVP = ratio(c.DeltaVPTotal, c.DeltaVPSamples)
	m.AvgDeltaVPNorm = ratio(c.DeltaVPNormTotal, c.DeltaVPNormSamples)
	m.AvgDeltaVPEarly = ratio(c.DeltaVPEarlyTotal, c.DeltaVPEarlySamples)
	m.AvgDeltaVPMid = ratio(c.DeltaVPMidTotal, c.DeltaVPMidSamples)
	m.AvgDeltaVPLate = ratio(c.DeltaVPLateTotal, c.DeltaVPLateSamples)

	if m.AvgDeltaVPEarly != nil && m.AvgDeltaVPMid != nil && m.AvgDeltaVPLate != nil {
		m.PowerScore = ptr(*m.AvgDeltaVPEarly*powerWeightEarly +
			*m.AvgDeltaVPMid*powerWeightMid +
			*m.AvgDeltaVPLate*powerWeightLate)
	}

	return m
}
