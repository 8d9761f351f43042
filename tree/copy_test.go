package tree

import (
	"testing"
)

const (
	tree1 = "((((a001:0.242690,a002:0.268555)#1:0.073424,a003:0.252510):0.198740,((((((a004:0.001000,a005:0.014869):0.045007,a006:0.050606):0.056908,a007:0.166439):0.023217,a008:0.094788):0.429852,a009:0.558116):0.130317,(a010:0.009332,a011:0.024271):0.315124):0.217376):0.464470,a012:0.144369):0.0;"
)

func TestCopy(tst *testing.T) {
	t, err := ParseNewickString(tree1)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	c := t.Copy()

	if c.NNodes() != t.NNodes() || c.NLeaves() != t.NLeaves() {
		tst.Fatal("node counts differ between copies")
	}
	for i, node := range t.Nodes() {
		cnode := c.NodeById(i)
		if cnode == node {
			tst.Error("node pointers match between trees")
		}
		if cnode.Name != node.Name || cnode.Class != node.Class || cnode.Height != node.Height {
			tst.Errorf("node %d differs: %v vs %v", i, cnode.LongString(), node.LongString())
		}
		if !node.IsRoot() && cnode.Parent.Id != node.Parent.Id {
			tst.Errorf("node %d has a different parent", i)
		}
	}
	if c.String() != t.String() {
		tst.Error("copy formats differently", c, t)
	}

	// listeners stay with the original tree
	var calls int
	t.AddListener(func(_ *Tree, _ int) { calls++ })
	leaf := c.NodeById(t.ExternalNodes()[0].Id)
	c.SetHeight(leaf, leaf.Height+0.01)
	if calls != 0 {
		tst.Error("copy notified listeners of the original")
	}
	if t.NodeById(leaf.Id).Height == leaf.Height {
		tst.Error("height change leaked into the original")
	}

	if c.RootHeightParameter() == t.RootHeightParameter() {
		tst.Fatal("root height parameter is shared between copies")
	}
	h := t.Root().Height
	c.RootHeightParameter().SetValue(0, h+1)
	if c.Root().Height != h+1 || t.Root().Height != h {
		tst.Error("root height parameter is not bound to its own tree")
	}
}
