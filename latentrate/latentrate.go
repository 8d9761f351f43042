/*

Latentrate computes the density of latent branch proportions under a
two-state latent process and the resulting branch rates.

Print the density of the latent proportion for a single branch:

	latentrate density --rate 4.4 --freq 0.25 --length 2

Compute the log density of the proportions for a tree:

	latentrate likelihood --model model.yaml tree.nwk

The model file is YAML, see ModelConfig. Flags override its values.

*/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/latentrate/branchrate"
	"bitbucket.org/Davydov/latentrate/checkpoint"
	"bitbucket.org/Davydov/latentrate/parameter"
	"bitbucket.org/Davydov/latentrate/tree"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("latentrate")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	// application
	app = kingpin.New("latentrate", "latent state branch rate model").Version(version)

	// model overrides, shared by the commands
	rate       = &optFloat{}
	freq       = &optFloat{}
	periods    = &optInt{}
	scale      = &optBool{}
	condition  = &optBool{}
	classes    = &optBool{}
	clockRate  = &optFloat{}
	nonLatent  = &optFloat{}
	proportion = &optFloat{}

	// technical
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")

	// density command
	densityCmd    = app.Command("density", "print density of the latent proportion for one branch")
	densityLength = densityCmd.Flag("length", "branch length").Default("2").Float64()
	densityStep   = densityCmd.Flag("step", "proportion step").Default("0.01").Float64()

	// likelihood command
	likelihoodCmd  = app.Command("likelihood", "compute log density of latent proportions for a tree")
	treeFileName   = likelihoodCmd.Arg("tree", "time tree in newick format").Required().ExistingFile()
	modelFileName  = likelihoodCmd.Flag("model", "model file (YAML)").ExistingFile()
	dbFileName     = likelihoodCmd.Flag("db", "save the result to a bolt database").String()
	dbKey          = likelihoodCmd.Flag("key", "database key").Default("latentrate").String()
	jsonF          = likelihoodCmd.Flag("json", "write json output to a file").String()
	printBranches  = likelihoodCmd.Flag("branches", "print per-branch values").Bool()
	printTraitTree = likelihoodCmd.Flag("traits", "print branch rates as a tree").Bool()
)

func init() {
	app.Flag("rate", "latent transition rate").SetValue(rate)
	app.Flag("freq", "latent state frequency").SetValue(freq)
	app.Flag("periods", "maximum number of latent periods per branch").SetValue(periods)
	app.Flag("scale", "scale the latent transition rate by the root height").SetValue(scale)
	app.Flag("condition", "condition on at least one state change").SetValue(condition)
	app.Flag("classes", "one latent proportion per branch class (#label)").SetValue(classes)
	app.Flag("clock", "strict clock rate").SetValue(clockRate)
	app.Flag("nonlatent", "clock rate on branches with latency").SetValue(nonLatent)
	app.Flag("proportion", "latent proportion of every branch").SetValue(proportion)
}

// applyFlags overrides the configuration with the command-line flags.
func applyFlags(conf *ModelConfig) {
	rate.apply(&conf.Rate)
	freq.apply(&conf.Freq)
	periods.apply(&conf.Periods)
	scale.apply(&conf.ScaleByRootHeight)
	condition.apply(&conf.ConditionOnStateChange)
	classes.apply(&conf.Classes)
	clockRate.apply(&conf.ClockRate)
	proportion.apply(&conf.Proportion)
	if nonLatent.set {
		v := nonLatent.v
		conf.NonLatentRate = &v
	}
}

// density prints the density of the latent proportion on a grid.
func density(w io.Writer, conf *ModelConfig, length, step float64) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	if !(length > 0) || !(step > 0 && step < 1) {
		return fmt.Errorf("branch length should be positive and step in (0, 1)")
	}
	opts := branchrate.DefaultOptions()
	opts.MaxLatentPeriods = conf.Periods
	opts.ConditionOnStateChange = conf.ConditionOnStateChange
	m, err := branchrate.NewDensityModelOptions(parameter.New("rate", conf.Rate), parameter.New("freq", conf.Freq), opts)
	if err != nil {
		return err
	}
	log.Info(m)
	p := 0.0
	if conf.ConditionOnStateChange {
		p = step
	}
	for ; p < 1; p += step {
		d, err := m.BranchRewardDensity(p, length)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v,\t%v\n", p, d)
	}
	kernel, err := m.MarkovReward()
	if err != nil {
		return err
	}
	log.Notice(kernel)
	return nil
}

// likelihood computes log density of the proportions and the
// statistics for the tree.
func likelihood(w io.Writer, conf *ModelConfig) (*RunSummary, error) {
	startTime := time.Now()

	treeFile, err := os.Open(*treeFileName)
	if err != nil {
		return nil, err
	}
	defer treeFile.Close()

	t, err := tree.ParseNewick(treeFile)
	if err != nil {
		return nil, err
	}
	log.Infof("Tree with %d leaves", t.NLeaves())
	log.Debugf("intree=%s", t)
	log.Debug(t.FullString())

	m, err := newModel(t, conf)
	if err != nil {
		return nil, err
	}
	log.Info(m.LatentStateBranchRate)

	lnL, err := m.LogLikelihood()
	if err != nil {
		return nil, err
	}
	stats, err := m.Statistics()
	if err != nil {
		return nil, err
	}
	branches, err := m.Branches()
	if err != nil {
		return nil, err
	}

	if *printBranches {
		// node ids are the indices of per-branch proportions
		fmt.Fprintln(w, t.StringBr())
		fmt.Fprintln(w, "node\tname\tclass\tlength\tproportion\trate\tlnL")
		for _, b := range branches {
			fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%v\t%v\t%v\n", b.Node, b.Name, b.Class, b.Length, b.Proportion, b.Rate, b.LnL)
		}
	}
	if *printTraitTree {
		fmt.Fprintln(w, traitTree(t, m.LatentStateBranchRate))
	}
	for _, name := range m.StatisticNames() {
		log.Noticef("%s=%v", name, stats[name])
	}
	log.Noticef("lnL=%v", lnL)
	fmt.Fprintf(w, "lnL=%v\n", lnL)

	if *dbFileName != "" {
		store, err := checkpoint.Open(*dbFileName)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		err = store.Save(*dbKey, &checkpoint.Snapshot{
			Parameters:    m.Parameters(),
			LogLikelihood: lnL,
			Statistics:    stats,
			Final:         true,
		})
		if err != nil {
			return nil, err
		}
		log.Infof("Saved result to %s (key %s)", *dbFileName, *dbKey)
	}

	return &RunSummary{
		Tree:       t.String(),
		Model:      conf,
		LnL:        lnL,
		Statistics: stats,
		Branches:   branches,
		Time:       time.Since(startTime).Seconds(),
	}, nil
}

// traitTree formats the tree with branch rates as branch lengths.
func traitTree(t *tree.Tree, trait branchrate.Trait) string {
	var format func(node *tree.Node) string
	format = func(node *tree.Node) (s string) {
		if children := node.ChildNodes(); len(children) > 0 {
			s = "("
			for i, child := range children {
				if i > 0 {
					s += ","
				}
				s += format(child)
			}
			s += ")"
		}
		s += node.Name
		if !node.IsRoot() {
			s += ":" + trait.TraitString(t, node)
		}
		return
	}
	return format(t.Root()) + ";"
}

// writeJSON writes the summary to a file.
func writeJSON(fn string, summary interface{}) {
	j, err := json.Marshal(summary)
	if err != nil {
		log.Error(err)
		return
	}
	log.Debug(string(j))
	f, err := os.Create(fn)
	if err != nil {
		log.Error("Error creating json output file:", err)
		return
	}
	defer f.Close()
	if _, err = f.Write(j); err != nil {
		log.Error("Error writing json output file:", err)
	}
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, module := range []string{"latentrate", "branchrate", "reward", "tree", "checkpoint"} {
		logging.SetLevel(level, module)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	switch cmd {
	case densityCmd.FullCommand():
		conf := defaultModelConfig()
		applyFlags(conf)
		if err := density(os.Stdout, conf, *densityLength, *densityStep); err != nil {
			log.Fatal(err)
		}
	case likelihoodCmd.FullCommand():
		conf, err := readModelConfig(*modelFileName)
		if err != nil {
			log.Fatal(err)
		}
		applyFlags(conf)
		summary, err := likelihood(os.Stdout, conf)
		if err != nil {
			log.Fatal(err)
		}
		summary.Version = version
		summary.CommandLine = os.Args
		// output summary in json format
		if *jsonF != "" {
			writeJSON(*jsonF, summary)
		}
	}
}
