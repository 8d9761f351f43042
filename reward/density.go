package reward

import (
	"fmt"
	"math"

	"github.com/gonum/floats"
)

// SupportError reports a reward outside of [0, T].
type SupportError struct {
	R, T float64
}

func (e *SupportError) Error() string {
	return fmt.Sprintf("reward %v is outside of [0, %v]", e.R, e.T)
}

// Unwrap returns ErrOutOfSupport.
func (e *SupportError) Unwrap() error {
	return ErrOutOfSupport
}

// ComputePdf returns the joint density f(R=r, X(t)=j | X(0)=i) of
// the time r spent in state 1. The atoms at R=0 and R=t (paths
// without jumps) are not included, see ZeroJumpProbability.
//
// If the probability of paths with more than maxJumps jumps (see
// TruncationError) exceeds seriesTolerance, the truncated value is
// returned together with ErrSeriesNonConvergent.
func (m *OccupancyReward) ComputePdf(r, t float64, i, j int) (float64, error) {
	if i != 0 && i != 1 || j != 0 && j != 1 {
		return 0, ErrInvalidState
	}
	if !(t > 0) || math.IsInf(t, 0) {
		return 0, ErrInvalidInterval
	}
	if !(r >= 0 && r <= t) {
		return 0, &SupportError{r, t}
	}

	terms := m.terms[2*i+j]
	if len(terms) == 0 {
		// no paths with allowed number of jumps
		return 0, ErrSeriesNonConvergent
	}

	x := r / t
	logX := math.Log(x)
	log1mX := math.Log1p(-x)
	logT := math.Log(t)
	// exp(-a(t-r) - b r)
	logSojourn := -m.a*(t-r) - m.b*r

	m.logTerms = m.logTerms[:0]
	for _, tm := range terms {
		m.logTerms = append(m.logTerms, tm.logDensity(logT, logX, log1mX, logSojourn))
	}
	logPdf := floats.LogSumExp(m.logTerms)
	if math.IsInf(logPdf, -1) {
		return 0, nil
	}
	pdf := math.Exp(logPdf)
	if !(m.TruncationError(t, i, j) <= seriesTolerance) {
		return pdf, ErrSeriesNonConvergent
	}
	return pdf, nil
}

// logDensity returns log of w_k * g_k(r), the hypergeometric
// normalizers cancel out.
func (tm term) logDensity(logT, logX, log1mX, logSojourn float64) float64 {
	return tm.logRates - tm.logFact + float64(tm.k-1)*logT + logSojourn +
		xlogy(tm.m1-1, logX) + xlogy(tm.m0-1, log1mX) - tm.logBeta
}

// xlogy returns n*logy treating 0*log(0) as 0.
func xlogy(n int, logy float64) float64 {
	if n == 0 {
		return 0
	}
	return float64(n) * logy
}

// JumpProbabilities returns the probabilities of exactly k jumps
// (k = 1..maxJumps) on [0, t] ending in state 0 when starting from
// state 0. Odd jump counts have zero probability.
func (m *OccupancyReward) JumpProbabilities(t float64) []float64 {
	p, err := m.jumpProbabilities(t, 0, 0)
	res := make([]float64, len(p))
	if err != nil {
		for i := range res {
			res[i] = math.NaN()
		}
		return res
	}
	copy(res, p)
	return res
}

// JumpProbabilitiesFor returns the probabilities of exactly k jumps
// (k = 1..maxJumps) on [0, t] jointly with ending in state j when
// starting from state i.
func (m *OccupancyReward) JumpProbabilitiesFor(t float64, i, j int) ([]float64, error) {
	if i != 0 && i != 1 || j != 0 && j != 1 {
		return nil, ErrInvalidState
	}
	p, err := m.jumpProbabilities(t, i, j)
	if err != nil {
		return nil, err
	}
	res := make([]float64, len(p))
	copy(res, p)
	return res, nil
}

// jumpProbabilities fills the cached jump probabilities for the
// interval length t. The returned slice is reused by later calls.
func (m *OccupancyReward) jumpProbabilities(t float64, i, j int) ([]float64, error) {
	ij := 2*i + j
	if m.jumpOk[ij] && m.jumpT[ij] == t {
		return m.jumps[ij], nil
	}
	if !(t > 0) || math.IsInf(t, 0) {
		return nil, ErrInvalidInterval
	}
	m.jumpOk[ij] = false
	p := m.jumps[ij]
	for k := range p {
		p[k] = 0
	}
	logT := math.Log(t)
	z := (m.a - m.b) * t
	for _, tm := range m.terms[ij] {
		w, err := tm.probability(logT, z, m.a*t)
		if err != nil {
			return nil, err
		}
		p[tm.k-1] = w
	}
	m.jumpT[ij] = t
	m.jumpOk[ij] = true
	return p, nil
}

// probability returns the probability of exactly k jumps, i.e. the
// integral of the term over the reward.
func (tm term) probability(logT, z, at float64) (float64, error) {
	logM, err := logKummer(float64(tm.m1), float64(tm.k+1), z)
	if err != nil {
		return 0, err
	}
	return math.Exp(tm.logRates + float64(tm.k)*logT - tm.logFact - at + logM), nil
}

// TruncationError returns the probability of paths from i to j on
// [0, t] with more than maxJumps jumps, i.e. the mass which is
// missing from the truncated series.
func (m *OccupancyReward) TruncationError(t float64, i, j int) float64 {
	checkState(i)
	checkState(j)
	p, err := m.jumpProbabilities(t, i, j)
	if err != nil {
		return math.NaN()
	}
	missing := m.ConditionalProbability(t, i, j) - floats.Sum(p)
	if i == j {
		missing -= m.ZeroJumpProbability(t, i)
	}
	if missing < 0 {
		return 0
	}
	return missing
}
