package indicator

// RSI calculates the Relative Strength Index with Wilder's smoothing
// (alpha = 1/period). The result is full-length and aligned with prices;
// index 0 and bars where the smoothed loss is zero report 0.
func RSI(prices []float64, period int) []float64 {
	result := make([]float64, len(prices))
	if len(prices) < 2 || period < 1 {
		return result
	}

	alpha := 1.0 / float64(period)
	var avgUp, avgDown float64

	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		up, down := 0.0, 0.0
		if delta > 0 {
			up = delta
		} else {
			down = -delta
		}

		if i == 1 {
			avgUp, avgDown = up, down
		} else {
			avgUp = alpha*up + (1-alpha)*avgUp
			avgDown = alpha*down + (1-alpha)*avgDown
		}

		if avgDown == 0 {
			result[i] = 0
			continue
		}
		rs := avgUp / avgDown
		result[i] = 100 - 100/(1+rs)
	}
	return result
}
