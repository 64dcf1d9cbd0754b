package analytics

// ClassifyTrend labels the direction of a consumption series by comparing the mean of
// its first half against the mean of its second half (split by index, not
// time-weighted). A change beyond ±changePercent labels the trend increasing or
// decreasing, anything closer is stable.
//
// Fewer than 2 samples always yield TrendStable. A zero first-half mean cannot anchor
// a percentage change: the trend is increasing when the second half consumed anything
// at all, otherwise stable.
func ClassifyTrend(samples []ConsumptionSample, changePercent float64) Trend {
	if len(samples) < 2 {
		return TrendStable
	}

	half := len(samples) / 2
	firstMean := meanConsumption(samples[:half], noDateFilter)
	secondMean := meanConsumption(samples[half:], noDateFilter)

	if firstMean == 0 {
		if secondMean > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}

	change := (secondMean - firstMean) / firstMean * 100
	if change > changePercent {
		return TrendIncreasing
	}
	if change < -changePercent {
		return TrendDecreasing
	}
	return TrendStable
}
