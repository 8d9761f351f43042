package branchrate

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/gonum/floats"

	"bitbucket.org/Davydov/latentrate/parameter"
	"bitbucket.org/Davydov/latentrate/reward"
	"bitbucket.org/Davydov/latentrate/tree"
)

// truncationTolerance is the maximum probability of paths with too
// many jumps.
const truncationTolerance = 1e-6

// LatentStateBranchRate is a branch rate model where a branch spends
// a proportion of time in the latent state (state 1) of a two-state
// continuous-time Markov chain. The effective branch rate is the
// non-latent rate multiplied by the active proportion. The model
// also provides the log density of the latent proportions.
//
// Densities are cached per branch and recomputed only for branches
// whose length or proportion has changed. StoreState, RestoreState
// and AcceptState implement the sampler checkpoint protocol.
type LatentStateBranchRate struct {
	tree          *tree.Tree
	nonLatent     RateModel
	rate          *parameter.Parameter
	freq          *parameter.Parameter
	nonLatentRate *parameter.Parameter
	proportions   ProportionTable
	categories    CategoryProvider
	rootHeight    *parameter.Parameter

	maxLatentPeriods       int
	scaleByRootHeight      bool
	conditionOnStateChange bool
	newReward              RewardFactory

	kernel       Reward
	storedKernel Reward

	logLikelihood       float64
	storedLogLikelihood float64
	known               bool
	storedKnown         bool
	stored              bool

	cache *likelihoodCache
	dirty *dirtyTracker

	listeners []Listener
}

// New creates a latent state branch rate model for the tree. The
// latent transition rate and the latent state frequency are scalar
// parameters. Proportions are per node, or per category if
// opts.Categories is set; the parameter is resized accordingly.
func New(t *tree.Tree, nonLatent RateModel, rate, freq, proportions *parameter.Parameter, opts Options) (*LatentStateBranchRate, error) {
	if t == nil {
		return nil, ErrNoTree
	}
	if nonLatent == nil || proportions == nil {
		return nil, errors.New("non-latent rate model and latent proportions are required")
	}
	m, err := newModel(rate, freq, opts)
	if err != nil {
		return nil, err
	}
	m.tree = t
	m.nonLatent = nonLatent
	m.nonLatentRate = opts.NonLatentRate
	m.categories = opts.Categories

	nCategories := 0
	if m.categories != nil {
		m.proportions = NewCategoryProportions(proportions, m.categories)
		nCategories = m.categories.CategoryCount()
	} else {
		m.proportions = NewBranchProportions(t, proportions)
	}
	m.cache = newLikelihoodCache(t.NNodes())
	m.dirty = newDirtyTracker(t.NNodes(), nCategories)

	t.AddListener(m.treeChanged)
	if n, ok := nonLatent.(Notifier); ok {
		n.AddListener(m.fire)
	}
	if m.nonLatentRate != nil {
		m.nonLatentRate.AddListener(func(*parameter.Parameter, int, parameter.ChangeType) {
			m.fire(-1)
		})
	}
	if m.categories != nil {
		proportions.AddListener(m.categoryProportionChanged)
	} else {
		proportions.AddListener(m.branchProportionChanged)
	}
	if m.scaleByRootHeight {
		m.rootHeight = t.RootHeightParameter()
		m.rootHeight.AddListener(m.generatorChanged)
	}
	return m, nil
}

// NewDensityModel creates a model without a tree which can only be
// used to compute branch reward densities. It conditions on at least
// one state change and allows DefaultMaxLatentPeriods periods.
func NewDensityModel(rate, freq *parameter.Parameter) *LatentStateBranchRate {
	opts := DefaultOptions()
	opts.ConditionOnStateChange = true
	m, err := NewDensityModelOptions(rate, freq, opts)
	if err != nil {
		panic(err)
	}
	return m
}

// NewDensityModelOptions is like NewDensityModel with custom options.
// Tree-related options are ignored.
func NewDensityModelOptions(rate, freq *parameter.Parameter, opts Options) (*LatentStateBranchRate, error) {
	opts.ScaleByRootHeight = false
	return newModel(rate, freq, opts)
}

// newModel creates a model with the latent process parameters only.
func newModel(rate, freq *parameter.Parameter, opts Options) (*LatentStateBranchRate, error) {
	if rate == nil || freq == nil {
		return nil, errors.New("latent transition rate and frequency are required")
	}
	if opts.MaxLatentPeriods == 0 {
		opts.MaxLatentPeriods = DefaultMaxLatentPeriods
	}
	if opts.MaxLatentPeriods < 0 {
		return nil, fmt.Errorf("maximum number of latent periods should be positive, got %d", opts.MaxLatentPeriods)
	}
	if opts.NewReward == nil {
		opts.NewReward = NewOccupancyReward
	}
	m := &LatentStateBranchRate{
		rate:                   rate,
		freq:                   freq,
		maxLatentPeriods:       opts.MaxLatentPeriods,
		scaleByRootHeight:      opts.ScaleByRootHeight,
		conditionOnStateChange: opts.ConditionOnStateChange,
		newReward:              opts.NewReward,
	}
	rate.AddListener(m.generatorChanged)
	freq.AddListener(m.generatorChanged)
	return m, nil
}

// treeChanged handles branch length and topology changes.
func (m *LatentStateBranchRate) treeChanged(_ *tree.Tree, index int) {
	m.known = false
	if index == -1 {
		m.dirty.markAllBranches()
	} else {
		m.dirty.markBranch(index)
	}
	m.fire(index)
}

// generatorChanged handles changes of the latent rate, the latent
// frequency and the root height if the rate is scaled.
func (m *LatentStateBranchRate) generatorChanged(*parameter.Parameter, int, parameter.ChangeType) {
	m.kernel = nil
	m.known = false
	if m.dirty != nil {
		m.dirty.markAllBranches()
	}
}

func (m *LatentStateBranchRate) branchProportionChanged(_ *parameter.Parameter, index int, _ parameter.ChangeType) {
	m.known = false
	if index == -1 {
		m.dirty.markAllBranches()
	} else {
		m.dirty.markBranch(index)
	}
	m.fire(index)
}

func (m *LatentStateBranchRate) categoryProportionChanged(_ *parameter.Parameter, index int, _ parameter.ChangeType) {
	m.known = false
	if index == -1 {
		m.dirty.markAllBranches()
	} else {
		m.dirty.markCategory(index)
	}
	m.fire(-1)
}

// fire notifies the listeners.
func (m *LatentStateBranchRate) fire(index int) {
	for _, l := range m.listeners {
		l(index)
	}
}

// AddListener subscribes to branch rate changes.
func (m *LatentStateBranchRate) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// latentTransitionRate returns the latent transition rate, divided
// by the root height if requested.
func (m *LatentStateBranchRate) latentTransitionRate() float64 {
	if m.scaleByRootHeight {
		return m.rate.Value(0) / m.rootHeight.Value(0)
	}
	return m.rate.Value(0)
}

// MarkovReward returns the reward kernel for the current parameter
// values, creating it if necessary.
func (m *LatentStateBranchRate) MarkovReward() (Reward, error) {
	if m.kernel == nil {
		q := reward.NewGenerator(m.latentTransitionRate(), m.freq.Value(0))
		kernel, err := m.newReward(q, 2*m.maxLatentPeriods)
		if err != nil {
			return nil, err
		}
		m.kernel = kernel
	}
	return m.kernel, nil
}

// Proportion returns the latent proportion of the branch.
func (m *LatentStateBranchRate) Proportion(t *tree.Tree, node *tree.Node) float64 {
	return m.proportions.Proportion(t, node)
}

// BranchRate returns the effective rate of the branch above node.
func (m *LatentStateBranchRate) BranchRate(t *tree.Tree, node *tree.Node) float64 {
	rate := m.nonLatent.BranchRate(t, node)
	p := m.Proportion(t, node)
	if m.nonLatentRate != nil && p > 0 {
		rate = m.nonLatentRate.Value(0)
	}
	return rate * (1 - p)
}

// BranchRewardDensity returns the density of the latent proportion
// for a branch of the given length. The density is 0 if it cannot be
// computed reliably.
func (m *LatentStateBranchRate) BranchRewardDensity(proportion, length float64) (float64, error) {
	if proportion == 0 && m.conditionOnStateChange {
		log.Errorf("Latent proportion is 0, but the model is conditioned on at least one state change")
		return 0, &ProportionError{Node: -1, Value: proportion}
	}
	kernel, err := m.MarkovReward()
	if err != nil {
		return 0, err
	}
	rate := m.latentTransitionRate() * m.freq.Value(0) * length
	zeroJumps := math.Exp(-rate)

	marg := kernel.ConditionalProbability(length, 0, 0)
	if marg <= zeroJumps {
		log.Debugf("Marginal probability %v does not exceed zero jumps probability %v", marg, zeroJumps)
		return 0, nil
	}

	truncated := floats.Sum(kernel.JumpProbabilities(length))
	if !(marg-(zeroJumps+truncated) <= truncationTolerance) {
		log.Warningf("Numerical error, potentially insufficient truncation (rate=%v, branch length=%v)",
			m.latentTransitionRate(), length)
		return 0, nil
	}

	joint := zeroJumps
	if proportion > 0 {
		joint, err = kernel.ComputePdf(proportion*length, length, 0, 0)
		if errors.Is(err, reward.ErrSeriesNonConvergent) {
			log.Warningf("Series has not converged with %d latent periods (rate=%v, branch length=%v)",
				m.maxLatentPeriods, m.latentTransitionRate(), length)
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
	}

	var density float64
	if m.conditionOnStateChange {
		density = joint / (marg - zeroJumps)
	} else {
		density = joint / marg
	}
	if proportion > 0 {
		// density of the proportion, not of the reward
		density *= length
	}
	return density, nil
}

// LogLikelihood returns the log density of all the latent
// proportions. Only the branches which have changed since the last
// call are recomputed.
func (m *LatentStateBranchRate) LogLikelihood() (float64, error) {
	if m.tree == nil {
		return 0, ErrNoTree
	}
	if !m.known {
		logL, err := m.calculateLogLikelihood()
		if err != nil {
			return math.NaN(), err
		}
		m.logLikelihood = logL
		m.known = true
		log.Debugf("lnL=%v", logL)
	}
	return m.logLikelihood, nil
}

func (m *LatentStateBranchRate) calculateLogLikelihood() (float64, error) {
	logL := 0.0
	for _, node := range m.tree.Nodes() {
		if node.IsRoot() {
			continue
		}
		if m.dirty.isDirty(node.Id, m.category(node)) {
			p := m.Proportion(m.tree, node)
			if !(p >= 0 && p < 1) || p == 0 && m.conditionOnStateChange {
				log.Errorf("Invalid latent proportion %v for node %d", p, node.Id)
				return 0, &ProportionError{Node: node.Id, Value: p}
			}
			density, err := m.BranchRewardDensity(p, m.tree.BranchLength(node))
			if err != nil {
				return 0, fmt.Errorf("node %d: %w", node.Id, err)
			}
			m.cache.set(node.Id, math.Log(density))
		}
		logL += m.cache.get(node.Id)
	}
	m.dirty.clearBranches()
	m.dirty.clearCategories()
	return logL, nil
}

// category returns the category of the node, or -1 for per-branch
// proportions.
func (m *LatentStateBranchRate) category(node *tree.Node) int {
	if m.categories == nil {
		return -1
	}
	return m.categories.BranchCategory(m.tree, node)
}

// MakeDirty forces recomputation of everything.
func (m *LatentStateBranchRate) MakeDirty() {
	m.known = false
	m.kernel = nil
	if m.dirty != nil {
		m.dirty.markAllBranches()
	}
}

// StoreState saves the current state. It should be followed by
// either RestoreState or AcceptState.
func (m *LatentStateBranchRate) StoreState() error {
	if m.stored {
		log.Error("State is stored twice without restore or accept")
		return ErrProtocolMisuse
	}
	m.storedKernel = m.kernel
	m.storedLogLikelihood = m.logLikelihood
	m.storedKnown = m.known
	if m.tree != nil {
		m.cache.store()
		m.dirty.store()
	}
	m.stored = true
	return nil
}

// RestoreState brings back the state saved by StoreState. Without a
// preceding StoreState it does nothing and returns ErrProtocolMisuse.
func (m *LatentStateBranchRate) RestoreState() error {
	if !m.stored {
		log.Error("State is restored without being stored")
		return ErrProtocolMisuse
	}
	m.kernel = m.storedKernel
	m.logLikelihood = m.storedLogLikelihood
	m.known = m.storedKnown
	if m.tree != nil {
		m.cache.restore()
		m.dirty.restore()
	}
	m.stored = false
	return nil
}

// AcceptState discards the state saved by StoreState.
func (m *LatentStateBranchRate) AcceptState() {
	if m.tree != nil {
		m.cache.accept()
		m.dirty.accept()
	}
	m.stored = false
}

// TraitName returns "rate".
func (m *LatentStateBranchRate) TraitName() string {
	return RateTrait
}

// TraitString formats the branch rate.
func (m *LatentStateBranchRate) TraitString(t *tree.Tree, node *tree.Node) string {
	return strconv.FormatFloat(m.BranchRate(t, node), 'g', -1, 64)
}

// Intent returns IntentBranch, rates belong to branches.
func (m *LatentStateBranchRate) Intent() Intent {
	return IntentBranch
}

// Trait returns the model itself for "rate", the proportion table
// or the category provider.
func (m *LatentStateBranchRate) Trait(key string) (Trait, error) {
	for _, t := range m.Traits() {
		if t.TraitName() == key {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTrait, key)
}

// Traits returns all the tree traits of the model.
func (m *LatentStateBranchRate) Traits() []Trait {
	traits := []Trait{m}
	if m.proportions != nil {
		traits = append(traits, m.proportions)
	}
	if t, ok := m.categories.(Trait); ok {
		traits = append(traits, t)
	}
	return traits
}

// String returns a short description of the model.
func (m *LatentStateBranchRate) String() string {
	return fmt.Sprintf("LatentStateBranchRate{rate=%v, freq=%v, periods=%d, scale=%v, condition=%v}",
		m.rate.Value(0), m.freq.Value(0), m.maxLatentPeriods, m.scaleByRootHeight, m.conditionOnStateChange)
}
