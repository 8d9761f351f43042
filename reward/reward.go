// Package reward computes occupancy times (Markov rewards) of a
// two-state continuous-time Markov chain.
//
// The reward is the time R the chain spends in state 1 over the
// interval [0, T]. Conditional on k jumps the path consists of m0
// sojourns in state 0 and m1 sojourns in state 1 (m0+m1 = k+1) and R/T
// has a Beta(m1, m0) density tilted by exp((a-b)·r), where a is the
// 0→1 rate and b is the 1→0 rate. The joint density of R and the end
// state is the series over k of the jump count probability w_k times
// this conditional density; the series is truncated at a fixed
// maximum number of jumps.
package reward

import (
	"errors"
	"fmt"
	"math"

	"github.com/gonum/mathext"
	"github.com/gonum/matrix/mat64"
)

var (
	// ErrOutOfSupport is returned if the reward is outside [0, T].
	ErrOutOfSupport = errors.New("reward is outside of [0, T]")
	// ErrSeriesNonConvergent is returned if the truncated series
	// has not converged.
	ErrSeriesNonConvergent = errors.New("series has not converged")
	// ErrInvalidState is returned for states other than 0 and 1.
	ErrInvalidState = errors.New("state should be 0 or 1")
	// ErrInvalidInterval is returned for non-positive interval
	// lengths.
	ErrInvalidInterval = errors.New("interval length should be positive")
	// ErrInvalidGenerator is returned if the matrix is not a
	// two-state generator with positive rates.
	ErrInvalidGenerator = errors.New("invalid two-state generator")
)

const (
	// seriesTolerance is the maximum probability of the paths
	// omitted from a converged series.
	seriesTolerance = 1e-6
	// maxSeriesTerms limits the hypergeometric series.
	maxSeriesTerms = 100000
	// logEpsilon is log of a relative term size which does not
	// change a float64 sum.
	logEpsilon = -40
)

// NewGenerator creates the generator
//
//	[[-rate*freq, rate*freq], [rate*(1-freq), -rate*(1-freq)]]
//
// where freq is the equilibrium frequency of state 1.
func NewGenerator(rate, freq float64) *mat64.Dense {
	return mat64.NewDense(2, 2, []float64{
		-rate * freq, rate * freq,
		rate * (1 - freq), -rate * (1 - freq),
	})
}

// term holds interval independent coefficients of the series term
// with k jumps for a given start and end state.
type term struct {
	k int
	// sojourns in state 0 and 1
	m0, m1 int
	// j01*log(a) + j10*log(b)
	logRates float64
	// log k!
	logFact float64
	// log B(m1, m0)
	logBeta float64
}

// OccupancyReward evaluates occupancy densities for a two-state
// chain. It keeps internal buffers and is not safe for concurrent
// use.
type OccupancyReward struct {
	q        *mat64.Dense
	a, b     float64
	maxJumps int

	// terms per start/end pair (index 2*i+j)
	terms [4][]term

	// jump probabilities for the last interval length
	jumpT  [4]float64
	jumpOk [4]bool
	jumps  [4][]float64

	logTerms []float64
}

// New creates an OccupancyReward for the 2×2 generator q. The series
// includes paths with up to maxJumps jumps.
func New(q mat64.Matrix, maxJumps int) (*OccupancyReward, error) {
	if r, c := q.Dims(); r != 2 || c != 2 {
		return nil, fmt.Errorf("%w: %dx%d matrix", ErrInvalidGenerator, r, c)
	}
	if maxJumps < 1 {
		return nil, fmt.Errorf("maximum number of jumps should be positive, got %d", maxJumps)
	}
	a, b := q.At(0, 1), q.At(1, 0)
	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return nil, fmt.Errorf("%w: rates %v and %v", ErrInvalidGenerator, a, b)
	}
	if math.Abs(q.At(0, 0)+a) > 1e-12*a || math.Abs(q.At(1, 1)+b) > 1e-12*b {
		return nil, fmt.Errorf("%w: rows do not sum to zero", ErrInvalidGenerator)
	}
	m := &OccupancyReward{
		q:        mat64.DenseCopyOf(q),
		a:        a,
		b:        b,
		maxJumps: maxJumps,
		logTerms: make([]float64, 0, maxJumps),
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			m.terms[2*i+j] = m.createTerms(i, j)
			m.jumps[2*i+j] = make([]float64, maxJumps)
		}
	}
	return m, nil
}

// createTerms computes coefficients of all the series terms for the
// start state i and end state j.
func (m *OccupancyReward) createTerms(i, j int) (terms []term) {
	k := 1
	// even number of jumps returns to the starting state
	if i == j {
		k = 2
	}
	for ; k <= m.maxJumps; k += 2 {
		terms = append(terms, m.newTerm(i, k))
	}
	return terms
}

// newTerm returns the term with k jumps starting from state i.
func (m *OccupancyReward) newTerm(i, k int) term {
	var m0, m1, j01, j10 int
	if i == 0 {
		m0, m1 = (k+2)/2, (k+1)/2
		j01, j10 = (k+1)/2, k/2
	} else {
		m0, m1 = (k+1)/2, (k+2)/2
		j01, j10 = k/2, (k+1)/2
	}
	lf, _ := math.Lgamma(float64(k + 1))
	return term{
		k:        k,
		m0:       m0,
		m1:       m1,
		logRates: float64(j01)*math.Log(m.a) + float64(j10)*math.Log(m.b),
		logFact:  lf,
		logBeta:  mathext.Lbeta(float64(m1), float64(m0)),
	}
}

// ConditionalProbability returns P(X(t)=j | X(0)=i), the (i, j)
// entry of exp(Qt).
func (m *OccupancyReward) ConditionalProbability(t float64, i, j int) float64 {
	checkState(i)
	checkState(j)
	s := m.a + m.b
	// 1 - exp(-s*t)
	e := -math.Expm1(-s * t)
	switch {
	case i == 0 && j == 1:
		return m.a / s * e
	case i == 0 && j == 0:
		return 1 - m.a/s*e
	case i == 1 && j == 0:
		return m.b / s * e
	}
	return 1 - m.b/s*e
}

// TransitionMatrix returns exp(Qt) computed numerically by scaling
// and squaring.
func (m *OccupancyReward) TransitionMatrix(t float64) *mat64.Dense {
	// infinity norm of Qt
	norm := 2 * math.Max(m.a, m.b) * t
	n := 0
	for norm > 0.5 {
		norm /= 2
		n++
	}
	qt := &mat64.Dense{}
	qt.Scale(t/math.Pow(2, float64(n)), m.q)
	p := &mat64.Dense{}
	p.Exp(qt)
	for ; n > 0; n-- {
		sq := &mat64.Dense{}
		sq.Mul(p, p)
		p = sq
	}
	return p
}

// ZeroJumpProbability returns the probability of no jumps on
// [0, t] starting from state i. This is the atom of the reward at 0
// (i = 0) or at t (i = 1).
func (m *OccupancyReward) ZeroJumpProbability(t float64, i int) float64 {
	checkState(i)
	if i == 0 {
		return math.Exp(-m.a * t)
	}
	return math.Exp(-m.b * t)
}

// String returns description of the generator and the truncation.
func (m *OccupancyReward) String() string {
	return fmt.Sprintf("OccupancyReward{Q=[[%v, %v], [%v, %v]], maxJumps=%d}",
		m.q.At(0, 0), m.q.At(0, 1), m.q.At(1, 0), m.q.At(1, 1), m.maxJumps)
}

// checkState panics on invalid state.
func checkState(i int) {
	if i != 0 && i != 1 {
		panic(ErrInvalidState)
	}
}
