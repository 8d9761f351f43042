package main

import (
	"fmt"
	"io/ioutil"
	"strconv"

	"gopkg.in/yaml.v3"

	"bitbucket.org/Davydov/latentrate/branchrate"
)

// ModelConfig is the latent rate model description read from a YAML
// file. Command-line flags override it.
type ModelConfig struct {
	// Rate is the latent transition rate.
	Rate float64 `yaml:"rate"`
	// Freq is the equilibrium frequency of the latent state.
	Freq float64 `yaml:"freq"`
	// Periods is the maximum number of latent periods per branch.
	Periods int `yaml:"periods"`
	// ScaleByRootHeight divides the rate by the root height.
	ScaleByRootHeight bool `yaml:"scaleByRootHeight"`
	// ConditionOnStateChange requires at least one latent period
	// on every branch.
	ConditionOnStateChange bool `yaml:"conditionOnStateChange"`
	// ClockRate is the strict clock (non-latent) rate.
	ClockRate float64 `yaml:"clockRate"`
	// NonLatentRate replaces the clock rate on branches with
	// latency.
	NonLatentRate *float64 `yaml:"nonLatentRate,omitempty"`
	// Classes enables per-class proportions.
	Classes bool `yaml:"classes"`
	// Proportion is the default latent proportion.
	Proportion float64 `yaml:"proportion"`
	// Proportions are the latent proportions by node id or by
	// class if Classes is set.
	Proportions map[int]float64 `yaml:"proportions,omitempty"`
}

// defaultModelConfig returns the configuration used without a model
// file.
func defaultModelConfig() *ModelConfig {
	return &ModelConfig{
		Rate:                   1,
		Freq:                   0.5,
		Periods:                branchrate.DefaultMaxLatentPeriods,
		ConditionOnStateChange: true,
		ClockRate:              1,
		Proportion:             0.1,
	}
}

// readModelConfig reads a YAML model file on top of the defaults.
func readModelConfig(fn string) (*ModelConfig, error) {
	conf := defaultModelConfig()
	if fn == "" {
		return conf, nil
	}
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("error parsing model file %s: %w", fn, err)
	}
	return conf, nil
}

// Validate checks the values.
func (conf *ModelConfig) Validate() error {
	if !(conf.Rate > 0) {
		return fmt.Errorf("latent transition rate should be positive, got %v", conf.Rate)
	}
	if !(conf.Freq > 0 && conf.Freq < 1) {
		return fmt.Errorf("latent frequency should be in (0, 1), got %v", conf.Freq)
	}
	if conf.Periods <= 0 {
		return fmt.Errorf("number of latent periods should be positive, got %d", conf.Periods)
	}
	if !(conf.Proportion >= 0 && conf.Proportion < 1) {
		return fmt.Errorf("latent proportion should be in [0, 1), got %v", conf.Proportion)
	}
	for i, p := range conf.Proportions {
		if !(p >= 0 && p < 1) {
			return fmt.Errorf("latent proportion %d should be in [0, 1), got %v", i, p)
		}
	}
	return nil
}

// optFloat is a float flag which remembers whether it was set.
type optFloat struct {
	v   float64
	set bool
}

func (f *optFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

func (f *optFloat) String() string {
	return strconv.FormatFloat(f.v, 'g', -1, 64)
}

// apply overrides the value if the flag was set.
func (f *optFloat) apply(v *float64) {
	if f.set {
		*v = f.v
	}
}

// optInt is an integer flag which remembers whether it was set.
type optInt struct {
	v   int
	set bool
}

func (f *optInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

func (f *optInt) String() string {
	return strconv.Itoa(f.v)
}

func (f *optInt) apply(v *int) {
	if f.set {
		*v = f.v
	}
}

// optBool is a boolean flag which remembers whether it was set.
type optBool struct {
	v   bool
	set bool
}

func (f *optBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

func (f *optBool) String() string {
	return strconv.FormatBool(f.v)
}

// IsBoolFlag allows using the flag without a value.
func (f *optBool) IsBoolFlag() bool {
	return true
}

func (f *optBool) apply(v *bool) {
	if f.set {
		*v = f.v
	}
}
