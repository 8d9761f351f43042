package main

import (
	"bytes"
	"io/ioutil"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/latentrate/checkpoint"
	"bitbucket.org/Davydov/latentrate/tree"
)

const (
	testTree  = "((a:1,b:1)#1:1,(c:0.5,d:0.5)#1:1.5);"
	testModel = `rate: 0.5
freq: 0.4
periods: 8
conditionOnStateChange: false
clockRate: 2
nonLatentRate: 3
proportion: 0.2
proportions:
  1: 0.3
  3: 0
`
)

func init() {
	logging.SetLevel(logging.ERROR, "latentrate")
	logging.SetLevel(logging.CRITICAL, "branchrate")
	logging.SetLevel(logging.ERROR, "checkpoint")
}

func writeFile(tst *testing.T, name, content string) string {
	fn := filepath.Join(tst.TempDir(), name)
	if err := ioutil.WriteFile(fn, []byte(content), 0644); err != nil {
		tst.Fatal("Error writing file:", err)
	}
	return fn
}

func TestModelConfig(tst *testing.T) {
	conf, err := readModelConfig(writeFile(tst, "model.yaml", testModel))
	if err != nil {
		tst.Fatal("Error reading model:", err)
	}
	if conf.Rate != 0.5 || conf.Freq != 0.4 || conf.Periods != 8 || conf.ConditionOnStateChange {
		tst.Error("wrong model", conf)
	}
	if conf.NonLatentRate == nil || *conf.NonLatentRate != 3 {
		tst.Error("expected non-latent rate 3")
	}
	if len(conf.Proportions) != 2 || conf.Proportions[1] != 0.3 {
		tst.Error("wrong proportions", conf.Proportions)
	}
	if err = conf.Validate(); err != nil {
		tst.Error("Validation error:", err)
	}

	def, err := readModelConfig("")
	if err != nil || def.Periods != 5 || !def.ConditionOnStateChange {
		tst.Error("wrong default model", def, err)
	}

	if _, err = readModelConfig(writeFile(tst, "bad.yaml", "rate: [1")); err == nil {
		tst.Error("expected parse error")
	}

	for _, bad := range []func(*ModelConfig){
		func(c *ModelConfig) { c.Rate = 0 },
		func(c *ModelConfig) { c.Freq = 1 },
		func(c *ModelConfig) { c.Periods = 0 },
		func(c *ModelConfig) { c.Proportion = 1 },
		func(c *ModelConfig) { c.Proportions = map[int]float64{2: -0.1} },
	} {
		c := defaultModelConfig()
		bad(c)
		if c.Validate() == nil {
			tst.Error("expected validation error", c)
		}
	}
}

func TestFlags(tst *testing.T) {
	conf := defaultModelConfig()
	r := &optFloat{}
	if err := r.Set("x"); err == nil {
		tst.Error("expected error parsing float")
	}
	r.apply(&conf.Rate)
	if conf.Rate != 1 {
		tst.Error("unset flag changed the value")
	}
	if err := r.Set("2.5"); err != nil {
		tst.Fatal("Error:", err)
	}
	r.apply(&conf.Rate)
	if conf.Rate != 2.5 || r.String() != "2.5" {
		tst.Error("flag was not applied", conf.Rate, r)
	}

	b := &optBool{}
	if !b.IsBoolFlag() {
		tst.Error("expected bool flag")
	}
	if err := b.Set("false"); err != nil {
		tst.Fatal("Error:", err)
	}
	b.apply(&conf.ConditionOnStateChange)
	if conf.ConditionOnStateChange {
		tst.Error("flag was not applied")
	}

	n := &optInt{}
	if err := n.Set("7"); err != nil {
		tst.Fatal("Error:", err)
	}
	n.apply(&conf.Periods)
	if conf.Periods != 7 {
		tst.Error("expected 7 periods, got", conf.Periods)
	}
}

func TestNewModel(tst *testing.T) {
	t, err := tree.ParseNewickString(testTree)
	if err != nil {
		tst.Fatal("Error parsing tree:", err)
	}
	conf, err := readModelConfig(writeFile(tst, "model.yaml", testModel))
	if err != nil {
		tst.Fatal("Error reading model:", err)
	}
	m, err := newModel(t, conf)
	if err != nil {
		tst.Fatal("Error creating model:", err)
	}
	if m.Proportions.Value(1) != 0.3 || m.Proportions.Value(3) != 0 || m.Proportions.Value(2) != 0.2 {
		tst.Error("wrong proportions", m.Proportions)
	}
	// node 3 has no latency and uses the clock rate
	if r := m.BranchRate(t, t.NodeById(3)); r != 2 {
		tst.Error("expected rate 2, got", r)
	}
	if r := m.BranchRate(t, t.NodeById(1)); math.Abs(r-3*0.7) > 1e-12 {
		tst.Error("expected rate 2.1, got", r)
	}

	branches, err := m.Branches()
	if err != nil {
		tst.Fatal("Error:", err)
	}
	if len(branches) != t.NNodes()-1 {
		tst.Fatal("expected a summary for every branch, got", len(branches))
	}
	lnL, err := m.LogLikelihood()
	if err != nil {
		tst.Fatal("Error:", err)
	}
	s := 0.0
	for _, b := range branches {
		s += b.LnL
	}
	if math.Abs(s-lnL) > 1e-12 {
		tst.Errorf("branch sum %v differs from lnL %v", s, lnL)
	}
	pars := m.Parameters()
	if len(pars) != 4+t.NNodes() || pars["nonLatentRate"] != 3 || pars["latentProportion[1]"] != 0.3 {
		tst.Error("wrong parameters", pars)
	}

	conf.Proportions = map[int]float64{100: 0.1}
	if _, err = newModel(t, conf); err == nil {
		tst.Error("expected index error")
	}

	negative := defaultModelConfig()
	negative.ClockRate = -1
	if _, err = newModel(t, negative); err == nil || !strings.Contains(err.Error(), "clock") {
		tst.Error("expected clock rate range error, got", err)
	}
	negative = defaultModelConfig()
	nl := -2.0
	negative.NonLatentRate = &nl
	if _, err = newModel(t, negative); err == nil || !strings.Contains(err.Error(), "nonLatentRate") {
		tst.Error("expected non-latent rate range error, got", err)
	}

	classes := defaultModelConfig()
	classes.Classes = true
	classes.Proportions = map[int]float64{1: 0.5}
	c, err := newModel(t, classes)
	if err != nil {
		tst.Fatal("Error creating model:", err)
	}
	if c.Proportions.Dimension() != 2 {
		tst.Error("expected two class proportions, got", c.Proportions.Dimension())
	}
	if p := c.Proportion(t, t.NodeById(4)); p != 0.5 {
		tst.Error("expected class proportion 0.5, got", p)
	}
}

func TestDensity(tst *testing.T) {
	conf := defaultModelConfig()
	var buf bytes.Buffer
	if err := density(&buf, conf, 2, 0.1); err != nil {
		tst.Fatal("Error:", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 9 && len(lines) != 10 {
		tst.Error("unexpected number of lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "0.1,\t") {
		tst.Error("unexpected first line", lines[0])
	}

	if err := density(&buf, conf, 0, 0.1); err == nil {
		tst.Error("expected error for zero length")
	}
}

func TestLikelihood(tst *testing.T) {
	*treeFileName = writeFile(tst, "tree.nwk", testTree)
	*dbFileName = filepath.Join(tst.TempDir(), "test.db")
	*dbKey = "test"
	*printBranches = true
	*printTraitTree = true
	defer func() {
		*dbFileName = ""
		*printBranches = false
		*printTraitTree = false
	}()

	conf := defaultModelConfig()
	var buf bytes.Buffer
	summary, err := likelihood(&buf, conf)
	if err != nil {
		tst.Fatal("Error:", err)
	}
	out := buf.String()
	if !strings.Contains(out, "node\tname") || !strings.Contains(out, "#br1") || !strings.HasSuffix(out, "\n") {
		tst.Error("unexpected output", out)
	}
	if math.IsNaN(summary.LnL) || len(summary.Branches) != 6 || len(summary.Statistics) != 2 {
		tst.Error("wrong summary", summary)
	}

	store, err := checkpoint.Open(*dbFileName)
	if err != nil {
		tst.Fatal("Error opening database:", err)
	}
	defer store.Close()
	snap, err := store.Load("test")
	if err != nil || snap == nil {
		tst.Fatal("snapshot was not saved", err)
	}
	if snap.LogLikelihood != summary.LnL || snap.Parameters["rate"] != 1 || !snap.Final {
		tst.Error("wrong snapshot", snap)
	}
}

func TestTraitTree(tst *testing.T) {
	t, err := tree.ParseNewickString(testTree)
	if err != nil {
		tst.Fatal("Error parsing tree:", err)
	}
	conf := defaultModelConfig()
	conf.Proportion = 0.5
	m, err := newModel(t, conf)
	if err != nil {
		tst.Fatal("Error creating model:", err)
	}
	if s := traitTree(t, m.LatentStateBranchRate); s != "((a:0.5,b:0.5):0.5,(c:0.5,d:0.5):0.5);" {
		tst.Error("unexpected trait tree", s)
	}
}
