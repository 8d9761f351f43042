// Package tree implements rooted time trees. Node heights are
// stored, branch lengths are derived from them. Changes of heights or
// topology are reported to listeners.
package tree

import (
	"fmt"
	"strings"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/latentrate/parameter"
)

// log is the global logging variable.
var log = logging.MustGetLogger("tree")

// RootHeightName is the name of the root height parameter.
const RootHeightName = "rootHeight"

// Listener is notified with the tree and the number of the node
// whose branch has changed, or -1 if the whole tree changed.
type Listener func(t *Tree, index int)

// Tree is a rooted tree. Nodes are numbered from 0 (root) in the
// order they appear in the Newick string.
type Tree struct {
	*Node
	nNodes     int
	nodes      []*Node
	external   []*Node
	internal   []*Node
	listeners  []Listener
	rootHeight *parameter.Parameter
}

// fromRoot creates a tree around the root node and sets up the root
// height parameter.
func fromRoot(root *Node) *Tree {
	t := &Tree{Node: root}
	t.rootHeight = parameter.New(RootHeightName, root.Height)
	t.rootHeight.SetMin(0)
	t.rootHeight.AddListener(func(p *parameter.Parameter, _ int, _ parameter.ChangeType) {
		if h := p.Value(0); h != t.Node.Height {
			t.SetHeight(t.Node, h)
		}
	})
	return t
}

// ClearCache drops cached node lists. It should be called after
// topology changes.
func (tree *Tree) ClearCache() {
	tree.nNodes = 0
	tree.nodes = nil
	tree.external = nil
	tree.internal = nil
}

// NNodes returns number of nodes including root.
func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

// Nodes returns all the nodes indexed by node id.
func (tree *Tree) Nodes() []*Node {
	if tree.nodes == nil {
		tree.nodes = make([]*Node, tree.NNodes())
		for node := range tree.Walker(nil) {
			tree.nodes[node.Id] = node
		}
	}
	return tree.nodes
}

// NodeById returns a node given its id.
func (tree *Tree) NodeById(id int) *Node {
	return tree.Nodes()[id]
}

// Root returns the root node.
func (tree *Tree) Root() *Node {
	return tree.Node
}

// ExternalNodes returns leaves ordered by node id.
func (tree *Tree) ExternalNodes() []*Node {
	if tree.external == nil {
		tree.splitNodes()
	}
	return tree.external
}

// InternalNodes returns internal nodes (including root) ordered by
// node id.
func (tree *Tree) InternalNodes() []*Node {
	if tree.internal == nil {
		tree.splitNodes()
	}
	return tree.internal
}

func (tree *Tree) splitNodes() {
	tree.external = make([]*Node, 0, tree.NNodes()/2+1)
	tree.internal = make([]*Node, 0, tree.NNodes()/2+1)
	for _, node := range tree.Nodes() {
		if node.IsTerminal() {
			tree.external = append(tree.external, node)
		} else {
			tree.internal = append(tree.internal, node)
		}
	}
}

// ClassNodes returns a channel with all the nodes of a given class.
func (tree *Tree) ClassNodes(class int) <-chan *Node {
	return tree.Walker(func(node *Node) bool {
		return node.Class == class
	})
}

// NLeaves returns number of leaves.
func (tree *Tree) NLeaves() int {
	return len(tree.ExternalNodes())
}

// MaxClass returns the largest class label in the tree.
func (tree *Tree) MaxClass() (max int) {
	for _, node := range tree.Nodes() {
		if node.Class > max {
			max = node.Class
		}
	}
	return
}

// Walker returns a channel with all the nodes passing the filter in
// pre-order.
func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// AddListener subscribes to tree changes.
func (tree *Tree) AddListener(l Listener) {
	tree.listeners = append(tree.listeners, l)
}

// Notify reports a change of branch index to all listeners. Index -1
// means the whole tree (e.g. topology) has changed.
func (tree *Tree) Notify(index int) {
	if index == -1 {
		tree.ClearCache()
	}
	for _, l := range tree.listeners {
		l(tree, index)
	}
}

// RootHeightParameter returns a parameter which is kept in sync with
// the root node height. Setting it moves the root.
func (tree *Tree) RootHeightParameter() *parameter.Parameter {
	return tree.rootHeight
}

// BranchLength returns length of the branch above the node, root
// branch has zero length.
func (tree *Tree) BranchLength(node *Node) float64 {
	if node.Parent == nil {
		return 0
	}
	return node.Parent.Height - node.Height
}

// SetHeight changes node height. Every branch whose length changes
// (the branch above the node and the branches of its children) is
// reported to the listeners.
func (tree *Tree) SetHeight(node *Node, h float64) {
	if node.Height == h {
		return
	}
	if node.Parent != nil && h > node.Parent.Height {
		log.Warningf("node %d height %v is above its parent (%v)", node.Id, h, node.Parent.Height)
	}
	node.Height = h
	if !node.IsRoot() {
		tree.Notify(node.Id)
	}
	for _, child := range node.childNodes {
		tree.Notify(child.Id)
	}
	if node.IsRoot() {
		tree.rootHeight.SetValue(0, h)
	}
}

// Copy creates independent copy of the tree. Listeners are not
// copied.
func (tree *Tree) Copy() (newTree *Tree) {
	nNodes := tree.NNodes()
	nodes := make([]*Node, nNodes)

	// Create node list.
	for i, node := range tree.Nodes() {
		if i != node.Id {
			panic("node id mismatch")
		}
		nodes[i] = node.Copy()
	}

	// Rewire node/parent connections.
	for i, node := range tree.Nodes() {
		newNode := nodes[i]
		for _, child := range node.childNodes {
			newNode.AddChild(nodes[child.Id])
		}
	}

	newTree = fromRoot(nodes[0])
	newTree.nNodes = nNodes
	newTree.nodes = nodes
	return
}

// String returns Newick representation with branch lengths.
func (tree *Tree) String() string {
	return tree.Node.String() + ";"
}

// Node is a tree node. Id is the node number, LeafId is the number
// among leaves, Class is a label set with #n in Newick.
type Node struct {
	Name       string
	Height     float64
	Parent     *Node
	childNodes []*Node
	Id         int
	LeafId     int
	Class      int
}

// NewNode creates a new node.
func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

// Copy creates copy of node with empty parent and children.
func (node *Node) Copy() *Node {
	return &Node{
		Name:       node.Name,
		Height:     node.Height,
		childNodes: make([]*Node, 0, len(node.childNodes)),
		Id:         node.Id,
		LeafId:     node.LeafId,
		Class:      node.Class,
	}
}

// AddChild attaches a child node.
func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

// BranchLength returns length of the branch above the node.
func (node *Node) BranchLength() float64 {
	if node.Parent == nil {
		return 0
	}
	return node.Parent.Height - node.Height
}

// StringBr returns Newick string with node ids instead of lengths.
func (node *Node) StringBr() (s string) {
	if node.IsTerminal() {
		return fmt.Sprintf("%s#br%d", node.Name, node.Id)
	}
	s += "("
	for i, child := range node.childNodes {
		s += child.StringBr()
		if i != len(node.childNodes)-1 {
			s += ","
		}
	}
	s += fmt.Sprintf(")#br%d", node.Id)
	if node.IsRoot() {
		s += ";"
	}
	return s
}

func (node *Node) String() (s string) {
	if node.IsTerminal() {
		return fmt.Sprintf("%s:%0.6f", node.Name, node.BranchLength())
	}
	s += "("
	for i, child := range node.childNodes {
		s += child.String()
		if i != len(node.childNodes)-1 {
			s += ","
		}
	}
	s += fmt.Sprintf("):%0.6f", node.BranchLength())
	return s
}

// LongString returns node description.
func (node *Node) LongString() (s string) {
	s = "<"
	if node.Parent == nil {
		s += "root, "
	}
	if node.Name != "" {
		s += "name=" + node.Name + ", "
	}
	s += fmt.Sprintf("Id=%v, Height=%v", node.Id, node.Height)
	if node.IsTerminal() {
		s += fmt.Sprintf(", TipId=%v", node.LeafId)
	}
	if node.Class != 0 {
		s += fmt.Sprintf(", Class=%v", node.Class)
	}
	s += ">"
	return
}

// FullString returns indented description of the subtree.
func (node *Node) FullString() string {
	return strings.TrimSpace(node.prefixString(""))
}

func (node *Node) prefixString(prefix string) (s string) {
	s = prefix + node.LongString() + "\n"
	for _, node := range node.childNodes {
		s += node.prefixString(prefix + "    ")
	}
	return
}

// ChildNodes returns children of the node.
func (node *Node) ChildNodes() []*Node {
	return node.childNodes
}

// Walk sends the subtree nodes passing the filter to the channel.
func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

// NSubNodes returns size of the subtree.
func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

// IsRoot checks if the node is root.
func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

// IsTerminal checks if the node is a leaf.
func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}
