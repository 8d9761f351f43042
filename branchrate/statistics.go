package branchrate

import (
	"fmt"
	"math"
	"sort"

	"bitbucket.org/Davydov/latentrate/tree"
)

// TruncationError returns the sum of the truncation errors over the
// internal non-root branches.
func (m *LatentStateBranchRate) TruncationError() (float64, error) {
	if m.tree == nil {
		return math.NaN(), ErrNoTree
	}
	kernel, err := m.MarkovReward()
	if err != nil {
		return math.NaN(), err
	}
	e := 0.0
	for _, node := range m.tree.InternalNodes() {
		// no jumps on a zero length branch
		if l := m.tree.BranchLength(node); !node.IsRoot() && l > 0 {
			e += kernel.TruncationError(l, 0, 0)
		}
	}
	return e, nil
}

// ExogenousMeanRate returns the mean non-latent rate weighted by
// parent height minus the active part of the child height.
func (m *LatentStateBranchRate) ExogenousMeanRate() (float64, error) {
	if m.tree == nil {
		return math.NaN(), ErrNoTree
	}
	weighted := 0.0
	total := 0.0
	add := func(node *tree.Node) {
		// kept for compatibility, (parent - child) * (1 - p) is the
		// active length
		l := node.Parent.Height - node.Height*(1-m.Proportion(m.tree, node))
		weighted += m.nonLatent.BranchRate(m.tree, node) * l
		total += l
	}
	for _, node := range m.tree.ExternalNodes() {
		add(node)
	}
	for _, node := range m.tree.InternalNodes() {
		if !node.IsRoot() {
			add(node)
		}
	}
	return weighted / total, nil
}

// Statistic returns a statistic by name.
func (m *LatentStateBranchRate) Statistic(name string) (float64, error) {
	switch name {
	case TruncationErrorStatistic:
		return m.TruncationError()
	case ExogenousMeanRateStatistic:
		return m.ExogenousMeanRate()
	}
	return math.NaN(), fmt.Errorf("unknown statistic %s", name)
}

// StatisticNames returns names of all the statistics.
func (m *LatentStateBranchRate) StatisticNames() []string {
	names := []string{TruncationErrorStatistic, ExogenousMeanRateStatistic}
	sort.Strings(names)
	return names
}

// Statistics returns values of all the statistics.
func (m *LatentStateBranchRate) Statistics() (map[string]float64, error) {
	res := make(map[string]float64, 2)
	for _, name := range m.StatisticNames() {
		v, err := m.Statistic(name)
		if err != nil {
			return nil, err
		}
		res[name] = v
	}
	return res, nil
}
