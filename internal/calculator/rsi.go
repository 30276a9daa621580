package calculator

// DefaultRSIWindow is the conventional RSI lookback.
const DefaultRSIWindow = 14

// rsiState carries the smoothed averages between steps.
type rsiState struct {
	avgGain float64
	avgLoss float64
}

// next applies one step of Wilder smoothing and returns the new state.
func (s rsiState) next(delta float64, window int) rsiState {
	gain, loss := split(delta)
	w := float64(window)
	return rsiState{
		avgGain: (s.avgGain*(w-1) + gain) / w,
		avgLoss: (s.avgLoss*(w-1) + loss) / w,
	}
}

func (s rsiState) value() float64 {
	if s.avgLoss == 0 {
		return 100
	}
	rs := s.avgGain / s.avgLoss
	return 100 - 100/(1+rs)
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// RSI computes the Wilder-smoothed relative strength index.
// The first window slots are undefined; the seed at index window is the
// simple mean of the first window gains and losses.
func RSI(values []float64, window int) (Series, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	if len(values) <= window {
		return nil, ErrInsufficientData
	}

	var seed rsiState
	for i := 1; i <= window; i++ {
		gain, loss := split(values[i] - values[i-1])
		seed.avgGain += gain
		seed.avgLoss += loss
	}
	seed.avgGain /= float64(window)
	seed.avgLoss /= float64(window)

	out := make(Series, len(values))
	out[window] = defined(seed.value())

	state := seed
	for i := window + 1; i < len(values); i++ {
		state = state.next(values[i]-values[i-1], window)
		out[i] = defined(state.value())
	}
	return out, nil
}
