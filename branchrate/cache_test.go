package branchrate

import "testing"

func TestDirtyTracker(tst *testing.T) {
	d := newDirtyTracker(5, 3)
	for i := 0; i < 5; i++ {
		if !d.isDirty(i, -1) {
			tst.Error("new tracker should mark every branch, branch", i)
		}
	}
	d.clearBranches()
	d.clearCategories()
	d.markBranch(3)
	if !d.isDirty(3, -1) || d.isDirty(2, -1) {
		tst.Error("wrong branch bits")
	}
	d.markCategory(1)
	if !d.isDirty(2, 1) || d.isDirty(2, 0) {
		tst.Error("wrong category bits")
	}

	d.store()
	d.markAllBranches()
	d.markAllCategories()
	d.restore()
	if !d.isDirty(3, -1) || d.isDirty(2, -1) || !d.isDirty(0, 1) || d.isDirty(0, 2) {
		tst.Error("restore did not bring back stored bits")
	}

	d.store()
	d.clearBranches()
	d.accept()
	if d.isDirty(3, -1) {
		tst.Error("accept should keep the current bits")
	}
}

func TestDirtyTrackerNoCategories(tst *testing.T) {
	d := newDirtyTracker(2, 0)
	d.clearBranches()
	d.clearCategories()
	d.store()
	d.restore()
	if d.isDirty(0, -1) || d.isDirty(1, -1) {
		tst.Error("unexpected dirty branch")
	}
}

func TestLikelihoodCache(tst *testing.T) {
	c := newLikelihoodCache(3)
	c.set(0, -1)
	c.set(1, -2)
	c.store()
	c.set(1, -5)
	c.set(2, -7)
	if c.get(1) != -5 {
		tst.Error("expected -5, got", c.get(1))
	}
	c.restore()
	if c.get(0) != -1 || c.get(1) != -2 || c.get(2) != 0 {
		tst.Error("wrong restored values", c.values)
	}
	c.store()
	c.set(0, 3)
	c.accept()
	if c.get(0) != 3 {
		tst.Error("accept should keep the current values")
	}
}
