package tree

import (
	"math"
	"testing"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/latentrate/parameter"
)

const (
	tree2 = "((a:1,b:2)#1:3,c:1):0;"

	smallDiff = 1e-12
)

func init() {
	logging.SetLevel(logging.ERROR, "tree")
}

func TestHeights(tst *testing.T) {
	t, err := ParseNewickString(tree2)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	tst.Log(t.FullString())
	if t.NNodes() != 5 {
		tst.Fatal("expected 5 nodes, got", t.NNodes())
	}
	// root 0, internal 1, a 2, b 3, c 4
	heights := []float64{5, 2, 1, 0, 4}
	for i, node := range t.Nodes() {
		if math.Abs(node.Height-heights[i]) > smallDiff {
			tst.Errorf("node %d: expected height %v, got %v", i, heights[i], node.Height)
		}
	}
	lengths := []float64{0, 3, 1, 2, 1}
	for i, node := range t.Nodes() {
		if math.Abs(t.BranchLength(node)-lengths[i]) > smallDiff {
			tst.Errorf("node %d: expected length %v, got %v", i, lengths[i], t.BranchLength(node))
		}
	}
	if t.NodeById(1).Class != 1 {
		tst.Error("expected class 1 for node 1")
	}
	if t.MaxClass() != 1 {
		tst.Error("expected max class 1, got", t.MaxClass())
	}
	if t.RootHeightParameter().Value(0) != 5 {
		tst.Error("expected root height 5, got", t.RootHeightParameter().Value(0))
	}
	if t.String() != "((a:1.000000,b:2.000000):3.000000,c:1.000000):0.000000;" {
		tst.Error("unexpected newick:", t)
	}
}

func TestExternalInternal(tst *testing.T) {
	t, err := ParseNewickString(tree1)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if len(t.ExternalNodes()) != 12 {
		tst.Error("expected 12 leaves, got", len(t.ExternalNodes()))
	}
	if len(t.InternalNodes()) != 11 {
		tst.Error("expected 11 internal nodes, got", len(t.InternalNodes()))
	}
	if t.InternalNodes()[0] != t.Root() {
		tst.Error("root should be the first internal node")
	}
	n := 0
	for node := range t.ClassNodes(1) {
		if node.Name != "" {
			tst.Error("expected an internal node, got", node.Name)
		}
		n++
	}
	if n != 1 {
		tst.Error("expected one node of class 1, got", n)
	}
}

func TestStringBr(tst *testing.T) {
	t, err := ParseNewickString("((a:1,b:1)#1:1,c:2);")
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if s := t.StringBr(); s != "((a#br2,b#br3)#br1,c#br4)#br0;" {
		tst.Error("unexpected tree with branch ids:", s)
	}
}

func TestSetHeightNotify(tst *testing.T) {
	t, err := ParseNewickString(tree2)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	var changed []int
	t.AddListener(func(tr *Tree, index int) {
		changed = append(changed, index)
	})

	t.SetHeight(t.NodeById(1), 2.5)
	if len(changed) != 3 || changed[0] != 1 || changed[1] != 2 || changed[2] != 3 {
		tst.Error("expected branches 1, 2, 3 to change, got", changed)
	}
	if math.Abs(t.BranchLength(t.NodeById(1))-2.5) > smallDiff {
		tst.Error("wrong branch length after height change")
	}

	changed = nil
	rootChanges := 0
	t.RootHeightParameter().AddListener(func(*parameter.Parameter, int, parameter.ChangeType) {
		rootChanges++
	})
	t.RootHeightParameter().SetValue(0, 10)
	if t.Root().Height != 10 {
		tst.Error("root height parameter did not move the root")
	}
	if len(changed) != 2 || changed[0] != 1 || changed[1] != 4 {
		tst.Error("expected branches 1 and 4 to change, got", changed)
	}
	if rootChanges != 1 {
		tst.Error("expected one root height notification, got", rootChanges)
	}

	t.SetHeight(t.Root(), 12)
	if t.RootHeightParameter().Value(0) != 12 {
		tst.Error("root height parameter is not in sync")
	}

	changed = nil
	t.Notify(-1)
	if len(changed) != 1 || changed[0] != -1 {
		tst.Error("expected whole tree change, got", changed)
	}
}

func TestParseErrors(tst *testing.T) {
	for _, s := range []string{"(a:1,b:1));", "a,b;", "(a:x,b:1);", "(a:-1,b:1);", "((a:1,b:1);"} {
		if _, err := ParseNewickString(s); err == nil {
			tst.Error("expected error parsing", s)
		}
	}
}
