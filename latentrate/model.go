package main

import (
	"fmt"
	"math"

	"bitbucket.org/Davydov/latentrate/branchrate"
	"bitbucket.org/Davydov/latentrate/parameter"
	"bitbucket.org/Davydov/latentrate/tree"
)

// Model is the latent rate model together with its parameters.
type Model struct {
	*branchrate.LatentStateBranchRate
	Tree        *tree.Tree
	Rate        *parameter.Parameter
	Freq        *parameter.Parameter
	Clock       *parameter.Parameter
	Proportions *parameter.Parameter
	// NonLatentRate is nil unless set in the configuration.
	NonLatentRate *parameter.Parameter
}

// newModel creates the model for the tree from the configuration.
func newModel(t *tree.Tree, conf *ModelConfig) (*Model, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		Tree:        t,
		Rate:        parameter.New("rate", conf.Rate),
		Freq:        parameter.New("freq", conf.Freq),
		Clock:       parameter.New("clock", conf.ClockRate),
		Proportions: parameter.New(branchrate.ProportionTrait, conf.Proportion),
	}
	m.Rate.SetMin(0)
	m.Freq.SetMin(0)
	m.Freq.SetMax(1)
	m.Clock.SetMin(0)
	m.Proportions.SetMin(0)
	m.Proportions.SetMax(1)

	opts := branchrate.DefaultOptions()
	opts.MaxLatentPeriods = conf.Periods
	opts.ScaleByRootHeight = conf.ScaleByRootHeight
	opts.ConditionOnStateChange = conf.ConditionOnStateChange
	if conf.NonLatentRate != nil {
		m.NonLatentRate = parameter.New("nonLatentRate", *conf.NonLatentRate)
		m.NonLatentRate.SetMin(0)
		opts.NonLatentRate = m.NonLatentRate
	}
	if conf.Classes {
		opts.Categories = branchrate.NewClassCategories(t)
		log.Infof("Using %d branch classes", opts.Categories.CategoryCount())
	}

	lsbr, err := branchrate.New(t, branchrate.NewStrictClock(m.Clock), m.Rate, m.Freq, m.Proportions, opts)
	if err != nil {
		return nil, err
	}
	m.LatentStateBranchRate = lsbr

	for i, p := range conf.Proportions {
		if i < 0 || i >= m.Proportions.Dimension() {
			return nil, fmt.Errorf("latent proportion index %d is out of range [0, %d)", i, m.Proportions.Dimension())
		}
		m.Proportions.SetValue(i, p)
	}
	for _, p := range m.parameters() {
		if !p.InRange() {
			return nil, fmt.Errorf("%s is out of range [%v, %v]: %v", p.Name(), p.GetMin(), p.GetMax(), p)
		}
	}
	return m, nil
}

// parameters returns all the model parameters.
func (m *Model) parameters() []*parameter.Parameter {
	pars := []*parameter.Parameter{m.Rate, m.Freq, m.Clock, m.Proportions}
	if m.NonLatentRate != nil {
		pars = append(pars, m.NonLatentRate)
	}
	return pars
}

// Parameters returns all the parameter values by name.
func (m *Model) Parameters() map[string]float64 {
	res := make(map[string]float64)
	for _, p := range m.parameters() {
		if p.Dimension() == 1 && p != m.Proportions {
			res[p.Name()] = p.Value(0)
			continue
		}
		for i, v := range p.Values() {
			res[fmt.Sprintf("%s[%d]", p.Name(), i)] = v
		}
	}
	return res
}

// Branches returns per-branch summaries.
func (m *Model) Branches() ([]BranchSummary, error) {
	var res []BranchSummary
	for _, node := range m.Tree.Nodes() {
		if node.IsRoot() {
			continue
		}
		br := m.Tree.BranchLength(node)
		p := m.Proportion(m.Tree, node)
		d, err := m.BranchRewardDensity(p, br)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", node.Id, err)
		}
		res = append(res, BranchSummary{
			Node:       node.Id,
			Name:       node.Name,
			Class:      node.Class,
			Length:     br,
			Proportion: p,
			Rate:       m.BranchRate(m.Tree, node),
			LnL:        math.Log(d),
		})
	}
	return res, nil
}
