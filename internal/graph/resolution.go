package graph

import (
	"fmt"

	"github.com/chubforge/chub/internal/domain"
)

// Node is one member of a CompatibilityResolution: a resolved distribution
// and the WheelKeys of its direct dependencies.
type Node struct {
	Key          domain.WheelKey
	Dependencies []domain.WheelKey
}

// CompatibilityResolution is the fixpoint result of the dependency-graph
// build: the Python version band the whole graph supports, the requested
// root packages, and every node reached while walking requires_dist edges.
type CompatibilityResolution struct {
	SupportedPythonBand []string
	Roots               []domain.WheelKey
	Nodes               map[string]Node
}

// Validate enforces the invariant every root exists as a node, and every
// node's dependencies exist as nodes.
func (r CompatibilityResolution) Validate() error {
	for _, root := range r.Roots {
		if _, ok := r.Nodes[root.String()]; !ok {
			return fmt.Errorf("graph: root %s is not present in nodes", root)
		}
	}

	for _, n := range r.Nodes {
		for _, dep := range n.Dependencies {
			if _, ok := r.Nodes[dep.String()]; !ok {
				return fmt.Errorf("graph: node %s depends on %s, which is not present in nodes", n.Key, dep)
			}
		}
	}

	return nil
}
