package indicator

// SMA calculates the simple moving average over a rolling window.
// The result is tail-aligned: len(prices)-period+1 values, the first
// covering prices[0:period].
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, len(prices)-period+1)

	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			result[i-period+1] = sum / float64(period)
		}
	}
	return result
}
