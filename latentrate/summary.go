package main

// RunSummary is the JSON summary of a likelihood computation.
type RunSummary struct {
	// Version stores the program version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Tree is the input tree.
	Tree string `json:"tree"`
	// Model is the model configuration after applying the flags.
	Model *ModelConfig `json:"model"`
	// LnL is the log density of the latent proportions.
	LnL float64 `json:"lnL"`
	// Statistics are the model statistics.
	Statistics map[string]float64 `json:"statistics,omitempty"`
	// Branches stores per-branch values.
	Branches []BranchSummary `json:"branches"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}

// BranchSummary stores values for one branch.
type BranchSummary struct {
	Node       int     `json:"node"`
	Name       string  `json:"name,omitempty"`
	Class      int     `json:"class"`
	Length     float64 `json:"length"`
	Proportion float64 `json:"proportion"`
	Rate       float64 `json:"rate"`
	LnL        float64 `json:"lnL"`
}
