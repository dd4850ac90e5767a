package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubNodes(plan []string, sufficient func(iter int) bool) (Nodes, map[string]int) {
	calls := map[string]int{}
	return Nodes{
		Planner: func(ctx context.Context, s SessionState) (Update, error) {
			calls[NodePlanner]++
			p := append([]string{}, plan...)
			return Update{Plan: &p, Iterations: ptr(s.Iterations + 1)}, nil
		},
		Researcher: func(ctx context.Context, s SessionState) (Update, error) {
			calls[NodeResearcher]++
			return Update{ClearPlan: true}, nil
		},
		Critic: func(ctx context.Context, s SessionState) (Update, error) {
			calls[NodeCritic]++
			return Update{IsSufficient: ptr(sufficient(s.Iterations))}, nil
		},
		Composer: func(ctx context.Context, s SessionState) (Update, error) {
			calls[NodeComposer]++
			return Update{Answer: ptr("answer")}, nil
		},
	}, calls
}

func TestEngineTransitions(t *testing.T) {
	tests := []struct {
		name       string
		plan       []string
		skip       bool
		ceiling    int
		sufficient func(int) bool
		wantIter   int
		wantCalls  map[string]int
	}{
		{
			name: "sufficient after one cycle", plan: []string{"q"}, skip: true, ceiling: 5,
			sufficient: func(int) bool { return true },
			wantIter:   1,
			wantCalls:  map[string]int{NodePlanner: 1, NodeResearcher: 1, NodeCritic: 1, NodeComposer: 1},
		},
		{
			name: "never sufficient hits the ceiling", plan: []string{"q"}, skip: true, ceiling: 4,
			sufficient: func(int) bool { return false },
			wantIter:   4,
			wantCalls:  map[string]int{NodePlanner: 4, NodeResearcher: 4, NodeCritic: 4, NodeComposer: 1},
		},
		{
			name: "sufficient on the third pass", plan: []string{"q"}, skip: true, ceiling: 5,
			sufficient: func(i int) bool { return i == 3 },
			wantIter:   3,
			wantCalls:  map[string]int{NodePlanner: 3, NodeResearcher: 3, NodeCritic: 3, NodeComposer: 1},
		},
		{
			name: "empty plan skips to the composer", plan: nil, skip: true, ceiling: 5,
			sufficient: func(int) bool { return false },
			wantIter:   1,
			wantCalls:  map[string]int{NodePlanner: 1, NodeComposer: 1},
		},
		{
			name: "empty plan without skip still researches", plan: nil, skip: false, ceiling: 2,
			sufficient: func(int) bool { return false },
			wantIter:   2,
			wantCalls:  map[string]int{NodePlanner: 2, NodeResearcher: 2, NodeCritic: 2, NodeComposer: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, calls := stubNodes(tt.plan, tt.sufficient)
			e := NewEngine(nodes, EngineConfig{IterationCeiling: tt.ceiling, SkipResearchOnEmptyPlan: tt.skip})

			state := NewSessionState("t", "q")
			require.NoError(t, e.Execute(context.Background(), state, nil))

			assert.Equal(t, tt.wantIter, state.Iterations)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, PhaseDone, state.Phase)
			require.NotNil(t, state.Answer)
			assert.Nil(t, state.Plan)
		})
	}
}

func TestEngineCeilingPrecedesSufficiency(t *testing.T) {
	e := NewEngine(Nodes{}, EngineConfig{IterationCeiling: 2})
	state := &SessionState{Phase: PhaseCritiquing, Iterations: 2, IsSufficient: false}
	assert.Equal(t, PhaseResponding, e.next(state))

	state = &SessionState{Phase: PhaseCritiquing, Iterations: 1, IsSufficient: false}
	assert.Equal(t, PhasePlanning, e.next(state))
}

func TestEnginePlanningAtCeilingComposes(t *testing.T) {
	nodes, calls := stubNodes([]string{"q"}, func(int) bool { return false })
	e := NewEngine(nodes, EngineConfig{IterationCeiling: 3})

	state := NewSessionState("t", "q")
	state.Iterations = 3
	require.NoError(t, e.Execute(context.Background(), state, nil))
	assert.Equal(t, map[string]int{NodeComposer: 1}, calls)
}

func TestEngineNodesReceiveCopies(t *testing.T) {
	nodes, _ := stubNodes([]string{"q"}, func(int) bool { return true })
	nodes.Researcher = func(ctx context.Context, s SessionState) (Update, error) {
		s.Plan[0] = "mutated"
		s.Evidence = append(s.Evidence, Evidence{Content: "sneaky"})
		return Update{ClearPlan: true}, nil
	}
	e := NewEngine(nodes, EngineConfig{})

	var seenPlan []string
	state := NewSessionState("t", "q")
	err := e.Execute(context.Background(), state, func(node string, s *SessionState) error {
		if node == NodePlanner {
			seenPlan = append([]string{}, s.Plan...)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, seenPlan)
	assert.Empty(t, state.Evidence)
}
