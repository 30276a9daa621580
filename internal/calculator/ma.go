package calculator

// SMA computes the simple moving average of values over the given window.
// Slots before window-1 are undefined. Each slot sums its own window so the
// result does not accumulate rounding drift along long series.
func SMA(values []float64, window int) (Series, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	if len(values) < window {
		return nil, ErrInsufficientData
	}

	out := make(Series, len(values))
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		for _, v := range values[i-window+1 : i+1] {
			sum += v
		}
		out[i] = defined(sum / float64(window))
	}
	return out, nil
}

// AverageVolume computes the rolling mean volume over the given window.
func AverageVolume(volumes []float64, window int) (Series, error) {
	return SMA(volumes, window)
}
