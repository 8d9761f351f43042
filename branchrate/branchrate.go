// Package branchrate implements branch rate models for time trees. The
// main model is LatentStateBranchRate, where every branch can spend a
// proportion of its duration in a latent (non-evolving) state.
package branchrate

import (
	"errors"
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/latentrate/parameter"
	"bitbucket.org/Davydov/latentrate/reward"
	"bitbucket.org/Davydov/latentrate/tree"
)

// log is the global logging variable.
var log = logging.MustGetLogger("branchrate")

// Trait names.
const (
	RateTrait       = "rate"
	ProportionTrait = "latentProportion"
	ClassTrait      = "class"
)

// Statistic names.
const (
	TruncationErrorStatistic   = "truncationError"
	ExogenousMeanRateStatistic = "exogenousMeanRate"
)

// DefaultMaxLatentPeriods is the default maximum number of latent
// periods per branch.
const DefaultMaxLatentPeriods = 5

var (
	// ErrInvalidProportion is returned if a latent proportion is
	// outside of [0, 1) or is zero while conditioning on a state
	// change.
	ErrInvalidProportion = errors.New("invalid latent proportion")
	// ErrProtocolMisuse is returned if the state is stored twice
	// without accepting or restoring.
	ErrProtocolMisuse = errors.New("state stored twice")
	// ErrUnknownTrait is returned for unrecognised trait keys.
	ErrUnknownTrait = errors.New("unknown tree trait")
	// ErrNoTree is returned by tree-dependent methods of a model
	// created without a tree.
	ErrNoTree = errors.New("model has no tree")
)

// ProportionError reports an invalid latent proportion.
type ProportionError struct {
	// Node is the node id, -1 if unknown.
	Node  int
	Value float64
}

func (e *ProportionError) Error() string {
	if e.Node < 0 {
		return fmt.Sprintf("invalid latent proportion %v", e.Value)
	}
	return fmt.Sprintf("invalid latent proportion %v for node %d", e.Value, e.Node)
}

// Unwrap returns ErrInvalidProportion.
func (e *ProportionError) Unwrap() error {
	return ErrInvalidProportion
}

// Intent specifies what a tree trait is attached to.
type Intent int

// Trait intents.
const (
	IntentNode Intent = iota
	IntentBranch
	IntentWhole
)

// Listener is notified when the rate of branch index changes, index
// is -1 if all the rates could have changed.
type Listener func(index int)

// RateModel provides a rate for every branch of the tree.
type RateModel interface {
	BranchRate(t *tree.Tree, node *tree.Node) float64
}

// Notifier is implemented by models which report their changes.
type Notifier interface {
	AddListener(Listener)
}

// Trait is a named per-node value which can be formatted.
type Trait interface {
	TraitName() string
	TraitString(t *tree.Tree, node *tree.Node) string
}

// Reward is the occupancy time kernel of the two-state latent
// process. *reward.OccupancyReward implements it.
type Reward interface {
	// ComputePdf returns the joint density of the reward r and the
	// end state j given the start state i on an interval of
	// length t.
	ComputePdf(r, t float64, i, j int) (float64, error)
	// ConditionalProbability returns P(X(t)=j | X(0)=i).
	ConditionalProbability(t float64, i, j int) float64
	// JumpProbabilities returns probabilities of 1..maxJumps
	// jumps from state 0 back to state 0.
	JumpProbabilities(t float64) []float64
	// TruncationError returns the mass missing from the
	// truncated series.
	TruncationError(t float64, i, j int) float64
}

// RewardFactory creates a reward kernel for the generator q including
// paths with up to maxJumps jumps.
type RewardFactory func(q *mat64.Dense, maxJumps int) (Reward, error)

// NewOccupancyReward is the default RewardFactory.
func NewOccupancyReward(q *mat64.Dense, maxJumps int) (Reward, error) {
	return reward.New(q, maxJumps)
}

// Options configures LatentStateBranchRate.
type Options struct {
	// MaxLatentPeriods is the maximum number of latent periods
	// per branch. The reward series includes up to twice as many
	// jumps.
	MaxLatentPeriods int
	// ScaleByRootHeight divides the latent transition rate by the
	// root height.
	ScaleByRootHeight bool
	// ConditionOnStateChange conditions the density on at least
	// one state change on every branch.
	ConditionOnStateChange bool
	// NonLatentRate if set replaces the non-latent model rate on
	// branches with a positive latent proportion.
	NonLatentRate *parameter.Parameter
	// Categories if set assigns one latent proportion per branch
	// category instead of one per branch.
	Categories CategoryProvider
	// NewReward creates the reward kernel, NewOccupancyReward if
	// nil.
	NewReward RewardFactory
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		MaxLatentPeriods: DefaultMaxLatentPeriods,
		NewReward:        NewOccupancyReward,
	}
}

// StrictClock is a rate model with the same rate on every branch.
type StrictClock struct {
	rate      *parameter.Parameter
	listeners []Listener
}

// NewStrictClock creates a strict clock model from a scalar
// parameter.
func NewStrictClock(rate *parameter.Parameter) *StrictClock {
	c := &StrictClock{rate: rate}
	rate.AddListener(func(*parameter.Parameter, int, parameter.ChangeType) {
		for _, l := range c.listeners {
			l(-1)
		}
	})
	return c
}

// BranchRate returns the clock rate.
func (c *StrictClock) BranchRate(*tree.Tree, *tree.Node) float64 {
	return c.rate.Value(0)
}

// AddListener subscribes to rate changes.
func (c *StrictClock) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}
