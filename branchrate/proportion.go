package branchrate

import (
	"strconv"

	"bitbucket.org/Davydov/latentrate/parameter"
	"bitbucket.org/Davydov/latentrate/tree"
)

// CategoryProvider assigns branches to categories.
type CategoryProvider interface {
	BranchCategory(t *tree.Tree, node *tree.Node) int
	CategoryCount() int
	TraitName() string
}

// ClassCategories uses node classes (Newick #labels) as branch
// categories.
type ClassCategories struct {
	count int
}

// NewClassCategories creates a category provider with one category
// per node class of the tree.
func NewClassCategories(t *tree.Tree) *ClassCategories {
	return &ClassCategories{count: t.MaxClass() + 1}
}

// BranchCategory returns the node class.
func (c *ClassCategories) BranchCategory(_ *tree.Tree, node *tree.Node) int {
	return node.Class
}

// CategoryCount returns the number of classes.
func (c *ClassCategories) CategoryCount() int {
	return c.count
}

// TraitName returns "class".
func (c *ClassCategories) TraitName() string {
	return ClassTrait
}

// TraitString returns the node class.
func (c *ClassCategories) TraitString(t *tree.Tree, node *tree.Node) string {
	return strconv.Itoa(c.BranchCategory(t, node))
}

// ProportionTable returns latent proportions of branches.
type ProportionTable interface {
	Trait
	Proportion(t *tree.Tree, node *tree.Node) float64
	// Parameter returns the underlying parameter.
	Parameter() *parameter.Parameter
}

// BranchProportions stores one latent proportion per node, the value
// of the root is not used.
type BranchProportions struct {
	p *parameter.Parameter
}

// NewBranchProportions creates a per-branch table. The parameter is
// resized to the number of nodes.
func NewBranchProportions(t *tree.Tree, p *parameter.Parameter) *BranchProportions {
	p.SetDimension(t.NNodes())
	return &BranchProportions{p: p}
}

// Proportion returns the value for the node id.
func (bp *BranchProportions) Proportion(_ *tree.Tree, node *tree.Node) float64 {
	return bp.p.Value(node.Id)
}

// Parameter returns the underlying parameter.
func (bp *BranchProportions) Parameter() *parameter.Parameter {
	return bp.p
}

// TraitName returns "latentProportion".
func (bp *BranchProportions) TraitName() string {
	return ProportionTrait
}

// TraitString formats the proportion of the node.
func (bp *BranchProportions) TraitString(t *tree.Tree, node *tree.Node) string {
	return strconv.FormatFloat(bp.Proportion(t, node), 'g', -1, 64)
}

// CategoryProportions stores one latent proportion per branch
// category.
type CategoryProportions struct {
	p          *parameter.Parameter
	categories CategoryProvider
}

// NewCategoryProportions creates a per-category table. The parameter
// is resized to the number of categories.
func NewCategoryProportions(p *parameter.Parameter, categories CategoryProvider) *CategoryProportions {
	p.SetDimension(categories.CategoryCount())
	return &CategoryProportions{p: p, categories: categories}
}

// Proportion returns the value for the node category.
func (cp *CategoryProportions) Proportion(t *tree.Tree, node *tree.Node) float64 {
	return cp.p.Value(cp.categories.BranchCategory(t, node))
}

// Parameter returns the underlying parameter.
func (cp *CategoryProportions) Parameter() *parameter.Parameter {
	return cp.p
}

// TraitName returns "latentProportion".
func (cp *CategoryProportions) TraitName() string {
	return ProportionTrait
}

// TraitString formats the proportion of the node category.
func (cp *CategoryProportions) TraitString(t *tree.Tree, node *tree.Node) string {
	return strconv.FormatFloat(cp.Proportion(t, node), 'g', -1, 64)
}
