// Package planner computes execution order for a flowchart graph and moves
// data between dependent nodes.
package planner

import (
	"fmt"

	"github.com/dukex/flowdeck/pkg/models"
)

// executable reports whether a node participates in the run order. Input
// nodes are value holders and data-save nodes are synthesized after their
// source executes; neither runs on its own.
func executable(node *models.Node) bool {
	return node.Type != models.NodeTypeInput && node.Type != models.NodeTypeDataSave
}

// Dependencies returns every transitive upstream node id of the given node,
// deduplicated, in discovery order. The walk is depth-first over incoming
// links and cycle-safe.
func Dependencies(doc *models.Document, nodeID string) []string {
	visited := map[string]struct{}{nodeID: {}}

	var deps []string

	var walk func(id string)

	walk = func(id string) {
		for _, link := range doc.Links {
			if link.Target != id {
				continue
			}

			if _, seen := visited[link.Source]; seen {
				continue
			}

			visited[link.Source] = struct{}{}
			deps = append(deps, link.Source)
			walk(link.Source)
		}
	}

	walk(nodeID)

	return deps
}

// RunOrder returns a dependency-respecting execution order over the
// document's executable nodes. Ties break deterministically on document
// order. Returns an error when the executable subgraph contains a cycle.
func RunOrder(doc *models.Document) ([]string, error) {
	include := make(map[string]bool, len(doc.Nodes))

	for _, n := range doc.Nodes {
		include[n.ID] = executable(n)
	}

	indegree := make(map[string]int, len(doc.Nodes))

	for _, n := range doc.Nodes {
		if include[n.ID] {
			indegree[n.ID] = 0
		}
	}

	for _, l := range doc.Links {
		if include[l.Source] && include[l.Target] {
			indegree[l.Target]++
		}
	}

	order := make([]string, 0, len(indegree))
	placed := make(map[string]struct{}, len(indegree))

	for len(order) < len(indegree) {
		progressed := false

		for _, n := range doc.Nodes {
			if !include[n.ID] {
				continue
			}

			if _, done := placed[n.ID]; done || indegree[n.ID] != 0 {
				continue
			}

			placed[n.ID] = struct{}{}
			order = append(order, n.ID)
			progressed = true

			for _, l := range doc.Links {
				if l.Source != n.ID || !include[l.Target] {
					continue
				}

				if _, done := placed[l.Target]; !done {
					indegree[l.Target]--
				}
			}
		}

		if !progressed {
			return nil, fmt.Errorf("flowchart contains a dependency cycle")
		}
	}

	return order, nil
}
