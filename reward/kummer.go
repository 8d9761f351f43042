package reward

import (
	"math"
)

// logKummer returns log M(alpha; beta; z) of the confluent
// hypergeometric function for alpha, beta > 0. Negative arguments use
// the Kummer transformation M(a; b; z) = exp(z) M(b-a; b; -z), so the
// series has only positive terms.
func logKummer(alpha, beta, z float64) (float64, error) {
	if z < 0 {
		l, err := logKummer(beta-alpha, beta, -z)
		return z + l, err
	}
	if z == 0 || alpha == 0 {
		return 0, nil
	}
	logZ := math.Log(z)
	logTerm := 0.0
	logSum := 0.0
	for n := 0; n < maxSeriesTerms; n++ {
		fn := float64(n)
		logTerm += math.Log((alpha+fn)/(beta+fn)) + logZ - math.Log(fn+1)
		logSum = logAdd(logSum, logTerm)
		// terms decrease once n exceeds z
		if fn+1 > z && logTerm-logSum < logEpsilon {
			return logSum, nil
		}
	}
	return logSum, ErrSeriesNonConvergent
}

// logAdd returns log(exp(a) + exp(b)).
func logAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	d := b - a
	if d < logEpsilon {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}
