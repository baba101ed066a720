package indicator

// EWMA calculates a full-length exponentially weighted moving average with
// smoothing factor 2/(span+1), seeded with the first value. Unlike EMA it
// does not wait for a full window, which matches the recursive form used
// for MACD.
func EWMA(prices []float64, span int) []float64 {
	if len(prices) == 0 {
		return []float64{}
	}

	result := make([]float64, len(prices))
	alpha := 2.0 / float64(span+1)

	ewma := prices[0]
	result[0] = ewma
	for i := 1; i < len(prices); i++ {
		ewma = alpha*prices[i] + (1-alpha)*ewma
		result[i] = ewma
	}
	return result
}

// MACD calculates the DIF (fast EWMA minus slow EWMA), DEA (signal line)
// and histogram series. All three are full-length and aligned with prices.
func MACD(prices []float64, fast, slow, signal int) (dif, dea, hist []float64) {
	if len(prices) == 0 {
		return []float64{}, []float64{}, []float64{}
	}

	emaFast := EWMA(prices, fast)
	emaSlow := EWMA(prices, slow)

	dif = make([]float64, len(prices))
	for i := range prices {
		dif[i] = emaFast[i] - emaSlow[i]
	}

	dea = EWMA(dif, signal)

	hist = make([]float64, len(prices))
	for i := range prices {
		hist[i] = dif[i] - dea[i]
	}
	return dif, dea, hist
}
