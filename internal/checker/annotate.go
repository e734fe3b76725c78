package checker

import (
	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/types"
)

// Annotation is the checker's result for one tree node: the resolved
// type and the effect row observed, handed to the downstream code
// generator.
type Annotation struct {
	Type    types.ID
	Effects []string
}

// Annotations maps checked nodes to their annotations. One store
// exists per compilation unit and survives the check for the code
// generator's benefit.
type Annotations struct {
	nodes map[ast.Node]Annotation
}

// NewAnnotations creates an empty store.
func NewAnnotations() *Annotations {
	return &Annotations{nodes: make(map[ast.Node]Annotation)}
}

// Set records the annotation for a node.
func (a *Annotations) Set(node ast.Node, ann Annotation) {
	a.nodes[node] = ann
}

// TypeOf returns the resolved type of a node.
func (a *Annotations) TypeOf(node ast.Node) (types.ID, bool) {
	ann, ok := a.nodes[node]

	return ann.Type, ok
}

// EffectsOf returns the effect row recorded for a node.
func (a *Annotations) EffectsOf(node ast.Node) []string {
	return a.nodes[node].Effects
}

// Len returns how many nodes carry annotations.
func (a *Annotations) Len() int {
	return len(a.nodes)
}
