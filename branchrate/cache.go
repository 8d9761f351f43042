package branchrate

// dirtyTracker remembers which branches and branch categories need
// recomputation. Stored copies are swapped on restore.
type dirtyTracker struct {
	branches         []bool
	storedBranches   []bool
	categories       []bool
	storedCategories []bool
}

// newDirtyTracker creates a tracker with everything marked.
func newDirtyTracker(nBranches, nCategories int) *dirtyTracker {
	d := &dirtyTracker{
		branches:       make([]bool, nBranches),
		storedBranches: make([]bool, nBranches),
	}
	if nCategories > 0 {
		d.categories = make([]bool, nCategories)
		d.storedCategories = make([]bool, nCategories)
	}
	d.markAllBranches()
	d.markAllCategories()
	return d
}

func (d *dirtyTracker) markBranch(i int) {
	d.branches[i] = true
}

func (d *dirtyTracker) markAllBranches() {
	for i := range d.branches {
		d.branches[i] = true
	}
}

func (d *dirtyTracker) markCategory(c int) {
	d.categories[c] = true
}

func (d *dirtyTracker) markAllCategories() {
	for i := range d.categories {
		d.categories[i] = true
	}
}

func (d *dirtyTracker) clearBranches() {
	for i := range d.branches {
		d.branches[i] = false
	}
}

func (d *dirtyTracker) clearCategories() {
	for i := range d.categories {
		d.categories[i] = false
	}
}

// isDirty checks whether the branch or its category (if category is
// non-negative) is marked.
func (d *dirtyTracker) isDirty(branch, category int) bool {
	if category >= 0 && d.categories[category] {
		return true
	}
	return d.branches[branch]
}

func (d *dirtyTracker) store() {
	copy(d.storedBranches, d.branches)
	copy(d.storedCategories, d.categories)
}

func (d *dirtyTracker) restore() {
	d.branches, d.storedBranches = d.storedBranches, d.branches
	d.categories, d.storedCategories = d.storedCategories, d.categories
}

func (d *dirtyTracker) accept() {}

// likelihoodCache keeps log-density of every branch.
type likelihoodCache struct {
	values []float64
	stored []float64
}

func newLikelihoodCache(n int) *likelihoodCache {
	return &likelihoodCache{
		values: make([]float64, n),
		stored: make([]float64, n),
	}
}

func (c *likelihoodCache) get(i int) float64 {
	return c.values[i]
}

func (c *likelihoodCache) set(i int, v float64) {
	c.values[i] = v
}

func (c *likelihoodCache) store() {
	copy(c.stored, c.values)
}

func (c *likelihoodCache) restore() {
	c.values, c.stored = c.stored, c.values
}

func (c *likelihoodCache) accept() {}
