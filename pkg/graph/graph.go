// Package graph flattens a tree of artifact descriptors into a
// dependency-ordered node sequence. Compilation is a pure, single-threaded
// walk: no I/O, safe to rerun any number of times.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vsajip/teleport/pkg/artifact"
)

var (
	// ErrCycle is wrapped by CycleError.
	ErrCycle = errors.New("cyclic dependency")
	// ErrDuplicateName reports two descriptors sharing an archive name
	// with differing content. Silent last-write-wins would be a
	// correctness hazard, so this is fatal.
	ErrDuplicateName = errors.New("duplicate archive name")
)

// CycleError reports a dependency cycle. Path holds the archive names along
// the cycle, first name repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Node is one compiled target: an artifact plus the archive names of its
// direct dependencies, deduplicated, in stable mount order.
type Node struct {
	Artifact *artifact.Artifact
	Prereqs  []string
}

// Name returns the node identity.
func (n Node) Name() string { return n.Artifact.Name() }

// Plan is the compiled output: every node's dependencies appear strictly
// earlier in Nodes.
type Plan struct {
	Nodes []Node
}

// Node returns the compiled node for an archive name.
func (p *Plan) Node(name string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.Name() == name {
			return n, true
		}
	}
	return Node{}, false
}

// Compile walks the graph reachable from roots and returns the flat,
// dependency-ordered plan. Artifacts reached via multiple paths appear
// once; identity is the archive name. Fails with a CycleError on any
// mount cycle and with ErrDuplicateName on a name collision with
// conflicting content.
func Compile(roots []*artifact.Artifact) (*Plan, error) {
	c := &compiler{
		fingerprints: map[string]string{},
		state:        map[string]walkState{},
		checked:      map[*artifact.Artifact]bool{},
	}
	for _, root := range roots {
		if root == nil {
			return nil, fmt.Errorf("%w: nil root", artifact.ErrInvalidConfig)
		}
		if err := c.visit(root); err != nil {
			return nil, err
		}
	}
	return &Plan{Nodes: c.nodes}, nil
}

type walkState int

const (
	unvisited walkState = iota
	visiting
	done
)

type compiler struct {
	fingerprints map[string]string
	state        map[string]walkState
	checked      map[*artifact.Artifact]bool
	path         []string
	nodes        []Node
}

func (c *compiler) visit(a *artifact.Artifact) error {
	if c.checked[a] {
		return nil
	}
	name := a.Name()

	fp, err := a.Fingerprint()
	if err != nil {
		return err
	}
	if prev, ok := c.fingerprints[name]; ok && prev != fp {
		return fmt.Errorf("%w: %q defined twice with conflicting content", ErrDuplicateName, name)
	}
	c.fingerprints[name] = fp

	switch c.state[name] {
	case done:
		// The name is already compiled, but fingerprints only encode
		// direct mount names: this distinct descriptor may still mount
		// conflicting content further down. Walk its mounts for
		// conflict checks without re-emitting anything; the checked
		// set keeps the walk linear over descriptor values.
		for _, m := range a.Mounts() {
			child, err := m.Node.Resolve()
			if err != nil {
				return err
			}
			if child == nil {
				return fmt.Errorf("%w: %q mount %q resolved to nothing", artifact.ErrInvalidConfig, name, m.Path)
			}
			if err := c.visit(child); err != nil {
				return err
			}
		}
		c.checked[a] = true
		return nil
	case visiting:
		return &CycleError{Path: c.cycleFrom(name)}
	}

	c.state[name] = visiting
	c.path = append(c.path, name)

	var prereqs []string
	staged := map[string]bool{}
	for _, m := range a.Mounts() {
		child, err := m.Node.Resolve()
		if err != nil {
			return err
		}
		if child == nil {
			return fmt.Errorf("%w: %q mount %q resolved to nothing", artifact.ErrInvalidConfig, name, m.Path)
		}
		if err := c.visit(child); err != nil {
			return err
		}
		if !staged[child.Name()] {
			staged[child.Name()] = true
			prereqs = append(prereqs, child.Name())
		}
	}

	c.path = c.path[:len(c.path)-1]
	c.state[name] = done
	c.checked[a] = true
	c.nodes = append(c.nodes, Node{Artifact: a, Prereqs: prereqs})
	return nil
}

// cycleFrom slices the current walk path from the first occurrence of name
// and closes the loop.
func (c *compiler) cycleFrom(name string) []string {
	for i, n := range c.path {
		if n == name {
			cycle := append([]string(nil), c.path[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}
