package agent

import (
	"context"
	"fmt"
)

const DefaultIterationCeiling = 5

const (
	NodePlanner    = "planner"
	NodeResearcher = "researcher"
	NodeCritic     = "critic"
	NodeComposer   = "composer"
)

// NodeFunc reads the current state and returns the fields it changes.
// Nodes never mutate the state they receive.
type NodeFunc func(ctx context.Context, state SessionState) (Update, error)

// Middleware wraps a node at graph-construction time.
type Middleware func(node string, next NodeFunc) NodeFunc

// Observer is called after each node's update has been applied. A non-nil
// error stops the run.
type Observer func(node string, state *SessionState) error

type Nodes struct {
	Planner    NodeFunc
	Researcher NodeFunc
	Critic     NodeFunc
	Composer   NodeFunc
}

type EngineConfig struct {
	IterationCeiling        int
	SkipResearchOnEmptyPlan bool
}

// NodeError reports which node failed.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Engine drives planning -> researching -> critiquing until the ceiling is
// reached or the evidence is judged sufficient, then composes the answer.
type Engine struct {
	nodes map[Phase]namedNode
	cfg   EngineConfig
}

type namedNode struct {
	name string
	run  NodeFunc
}

// NewEngine wraps every node with middlewares; the first middleware is the
// outermost.
func NewEngine(nodes Nodes, cfg EngineConfig, middlewares ...Middleware) *Engine {
	if cfg.IterationCeiling <= 0 {
		cfg.IterationCeiling = DefaultIterationCeiling
	}
	wrap := func(name string, fn NodeFunc) namedNode {
		for i := len(middlewares) - 1; i >= 0; i-- {
			fn = middlewares[i](name, fn)
		}
		return namedNode{name: name, run: fn}
	}
	return &Engine{
		nodes: map[Phase]namedNode{
			PhasePlanning:    wrap(NodePlanner, nodes.Planner),
			PhaseResearching: wrap(NodeResearcher, nodes.Researcher),
			PhaseCritiquing:  wrap(NodeCritic, nodes.Critic),
			PhaseResponding:  wrap(NodeComposer, nodes.Composer),
		},
		cfg: cfg,
	}
}

func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Execute runs from state.Phase until PhaseDone. A state already at done
// starts over from planning.
func (e *Engine) Execute(ctx context.Context, state *SessionState, observe Observer) error {
	if state.Phase == "" || state.Phase == PhaseDone {
		state.Phase = PhasePlanning
	}

	for state.Phase != PhaseDone {
		if state.Phase == PhasePlanning && state.Iterations >= e.cfg.IterationCeiling {
			state.Phase = PhaseResponding
		}

		node, ok := e.nodes[state.Phase]
		if !ok {
			return fmt.Errorf("unknown phase %q", state.Phase)
		}

		update, err := node.run(ctx, state.Clone())
		if err != nil {
			return &NodeError{Node: node.name, Err: err}
		}
		state.Apply(update)
		state.Phase = e.next(state)

		if observe != nil {
			if err := observe(node.name, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// next is the transition function. The ceiling check precedes the
// sufficiency flag.
func (e *Engine) next(state *SessionState) Phase {
	switch state.Phase {
	case PhasePlanning:
		if e.cfg.SkipResearchOnEmptyPlan && len(state.Plan) == 0 {
			state.Plan = nil
			return PhaseResponding
		}
		return PhaseResearching
	case PhaseResearching:
		return PhaseCritiquing
	case PhaseCritiquing:
		if state.Iterations >= e.cfg.IterationCeiling || state.IsSufficient {
			return PhaseResponding
		}
		return PhasePlanning
	default:
		return PhaseDone
	}
}
