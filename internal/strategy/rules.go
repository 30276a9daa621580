package strategy

import "CrossSentinel/internal/model"

// crossovers compares the fast/slow ordering of two consecutive bars.
// Golden: fast moves from at-or-below slow to strictly above.
// Death: fast moves from at-or-above slow to strictly below.
func crossovers(prevFast, prevSlow, lastFast, lastSlow float64) (golden, death bool) {
	golden = prevFast <= prevSlow && lastFast > lastSlow
	death = prevFast >= prevSlow && lastFast < lastSlow
	return golden, death
}

// decide applies the momentum and volume confirmations on the side of the
// crossover. Volume confirmation is the same in both directions.
func decide(d model.SignalDetails, threshold float64) model.SignalKind {
	participation := d.LastVolume > d.LastAvgVolume
	switch {
	case d.GoldenCross:
		if d.LastRSI > threshold && participation {
			return model.SignalBuy
		}
	case d.DeathCross:
		if d.LastRSI < threshold && participation {
			return model.SignalSell
		}
	}
	return model.SignalNone
}
