// Package depgraph models the resolved dependency relations between
// packages as a directed acyclic graph. The installer walks the graph so
// that every package is vendored only after everything it depends on.
package depgraph

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is a collection of packages and their dependency edges. All
// operations on the graph are concurrency-safe.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
}

// node is a single package vertex. It is un-exported to enforce interaction
// with the graph via the public API (using package names), not by direct
// struct manipulation.
type node struct {
	name string
	// deps holds the set of packages this package depends on (predecessors).
	deps map[string]*node
	// dependents holds the set of packages that depend on this one (successors).
	dependents map[string]*node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds the named package to the graph. If the package is already
// present, the call does nothing.
func (g *Graph) AddNode(name string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[name]; ok {
		return
	}

	g.nodes[name] = &node{
		name:       name,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge records that the `to` package depends on the `from` package. An
// error is returned if either package is missing or if the edge would be a
// self-reference.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", from, from)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("source package not found: %s", from)
	}

	toNode, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("destination package not found: %s", to)
	}

	toNode.deps[from] = fromNode
	fromNode.dependents[to] = toNode

	return nil
}

// Len returns the number of packages in the graph.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Names returns every package name in the graph, sorted.
func (g *Graph) Names() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns the packages the named package depends on, sorted.
func (g *Graph) Dependencies(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("package not found: %s", name)
	}

	deps := make([]string, 0, len(n.deps))
	for dep := range n.deps {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps, nil
}

// Dependents returns the packages that depend on the named package, sorted.
func (g *Graph) Dependents(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("package not found: %s", name)
	}

	dependents := make([]string, 0, len(n.dependents))
	for dep := range n.dependents {
		dependents = append(dependents, dep)
	}
	sort.Strings(dependents)
	return dependents, nil
}

// DetectCycles checks the graph for circular dependencies. It returns a
// non-nil error naming the first package found inside a cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited, known not to be part of a cycle.
	// temporary: currently on the recursion stack.
	// unvisited: everything else.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.name] {
			return nil
		}
		if temporary[n.name] {
			return fmt.Errorf("dependency cycle detected involving package '%s'", n.name)
		}

		temporary[n.name] = true

		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		delete(temporary, n.name)
		permanent[n.name] = true

		return nil
	}

	for _, n := range g.nodes {
		if !permanent[n.name] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	return nil
}

// TopoSort orders the packages so that every package appears after all of
// its dependencies. Ties are broken by name so that the same graph always
// yields the same order. An error is returned if the graph has a cycle.
func (g *Graph) TopoSort() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		indegree[name] = len(n.deps)
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for dependent := range g.nodes[name].dependents {
			if indegree[dependent]--; indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("cannot order packages: dependency cycle among %d remaining", len(g.nodes)-len(order))
	}
	return order, nil
}
