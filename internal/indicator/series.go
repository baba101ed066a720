package indicator

import (
	"math"
	"sort"
)

// CrossAboveAge returns how many bars ago the fast series last crossed
// above the slow series: 0 means the cross happened on the latest bar,
// -1 means no cross exists. Both series must be tail-aligned; the shorter
// one bounds the scan.
func CrossAboveAge(fast, slow []float64) int {
	n := len(fast)
	if len(slow) < n {
		n = len(slow)
	}
	if n < 2 {
		return -1
	}

	fo := len(fast) - n
	so := len(slow) - n
	for age := 0; age < n-1; age++ {
		i := n - 1 - age
		curFast, prevFast := fast[fo+i], fast[fo+i-1]
		curSlow, prevSlow := slow[so+i], slow[so+i-1]
		if prevFast <= prevSlow && curFast > curSlow {
			return age
		}
	}
	return -1
}

// Quantile returns the q-th quantile (0..1) of xs using linear
// interpolation between order statistics, NaN for empty input.
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// HighestClose returns the maximum value in xs, NaN for empty input.
func HighestClose(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	return max
}
