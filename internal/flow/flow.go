// File: internal/flow/flow.go
// Brief: Named steps with explicit dependencies, ordered and run one at a time.

package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// ErrCycle is returned when step dependencies form a cycle.
var ErrCycle = errors.New("dependency cycle detected")

// Step is one unit of work. Needs names the steps that must finish first.
type Step struct {
	Name  string
	Needs []string
	Run   func(ctx context.Context) error
}

// Graph collects steps in declaration order.
type Graph struct {
	Log   logr.Logger
	steps []Step
	index map[string]int
}

// New returns an empty graph.
func New(log logr.Logger) *Graph {
	return &Graph{Log: log, index: map[string]int{}}
}

// Add registers a step. Step names must be unique.
func (g *Graph) Add(s Step) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("step name is required")
	}
	if s.Run == nil {
		return fmt.Errorf("step %s has no action", name)
	}
	if g.index == nil {
		g.index = map[string]int{}
	}
	if _, dup := g.index[name]; dup {
		return fmt.Errorf("duplicate step %q", name)
	}
	s.Name = name
	g.index[name] = len(g.steps)
	g.steps = append(g.steps, s)
	return nil
}

// MustAdd is Add for statically declared graphs.
func (g *Graph) MustAdd(s Step) *Graph {
	if err := g.Add(s); err != nil {
		panic(err)
	}
	return g
}

// Order returns step names so that every step follows its needs. Among
// ready steps the one declared first wins.
func (g *Graph) Order() ([]string, error) {
	inDegree := make([]int, len(g.steps))
	dependents := make([][]int, len(g.steps))
	for i, s := range g.steps {
		for _, need := range s.Needs {
			dep, ok := g.index[need]
			if !ok {
				return nil, fmt.Errorf("step %s needs missing step %q", s.Name, need)
			}
			inDegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	done := make([]bool, len(g.steps))
	order := make([]string, 0, len(g.steps))
	for len(order) < len(g.steps) {
		next := -1
		for i := range g.steps {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, s := range g.steps {
				if !done[i] {
					stuck = append(stuck, s.Name)
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, g.steps[next].Name)
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}
	return order, nil
}

// Run executes the steps in Order. The first failure stops the run.
func (g *Graph) Run(ctx context.Context) error {
	order, err := g.Order()
	if err != nil {
		return err
	}
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := g.steps[g.index[name]]
		g.Log.V(1).Info("running step", "step", name)
		if err := step.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
