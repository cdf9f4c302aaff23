package dgibbs

import "math"

// Schedule maps the number of completed transitions to the noise
// contraction (alpha) and noise standard deviation (sigma) of the next one.
type Schedule func(count int) (contraction, sigma float64)

// ConstantSchedule uses the same contraction and sigma for every transition
func ConstantSchedule(contraction, sigma float64) Schedule {
	return func(int) (float64, float64) {
		return contraction, sigma
	}
}

// DefaultSchedule is ConstantSchedule(0.9, 0.1)
func DefaultSchedule() Schedule {
	return ConstantSchedule(0.9, 0.1)
}

// VariancePreservingSchedule decays sigma geometrically from sigmaMax to
// sigmaMin over horizon transitions and holds it at sigmaMin afterwards. The
// contraction is sqrt(1 - sigma²), so both sigmas must lie in (0, 1).
func VariancePreservingSchedule(sigmaMax, sigmaMin float64, horizon int) Schedule {
	ratio := 1.0
	if horizon > 0 {
		ratio = math.Pow(sigmaMin/sigmaMax, 1/float64(horizon))
	}
	return func(count int) (float64, float64) {
		sigma := sigmaMin
		if count < horizon {
			sigma = sigmaMax * math.Pow(ratio, float64(count))
		}
		return math.Sqrt(1 - sigma*sigma), sigma
	}
}
