package agent

import (
	"time"

	"site-research-be/pkg/llm"
)

// FingerprintLength is the number of leading runes that identify an
// evidence entry.
const FingerprintLength = 100

type Phase string

const (
	PhasePlanning    Phase = "planning"
	PhaseResearching Phase = "researching"
	PhaseCritiquing  Phase = "critiquing"
	PhaseResponding  Phase = "responding"
	PhaseDone        Phase = "done"
)

type Evidence struct {
	Source   string                 `json:"source"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (e Evidence) Fingerprint() string {
	r := []rune(e.Content)
	if len(r) > FingerprintLength {
		r = r[:FingerprintLength]
	}
	return string(r)
}

// SessionState is the record threaded through one query's execution.
// Plan is nil outside the window between the planner and the researcher.
// Answer is set by the composer only.
type SessionState struct {
	ThreadID       string        `json:"thread_id"`
	Query          string        `json:"query"`
	Plan           []string      `json:"plan"`
	CompletedSteps []string      `json:"completed_steps"`
	Reflection     string        `json:"reflection"`
	Iterations     int           `json:"iterations"`
	IsSufficient   bool          `json:"is_sufficient"`
	Evidence       []Evidence    `json:"evidence"`
	History        []llm.Message `json:"conversation_history"`
	Answer         *string       `json:"answer,omitempty"`
	Error          *string       `json:"error,omitempty"`
	Phase          Phase         `json:"phase"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func NewSessionState(threadID, query string) *SessionState {
	return &SessionState{
		ThreadID: threadID,
		Query:    query,
		Phase:    PhasePlanning,
	}
}

// InFlight reports whether the state was checkpointed before the composer ran.
func (s *SessionState) InFlight() bool {
	return s.Phase != "" && s.Phase != PhaseDone && s.Answer == nil
}

func (s *SessionState) Clone() SessionState {
	c := *s
	if s.Plan != nil {
		c.Plan = append([]string{}, s.Plan...)
	}
	c.CompletedSteps = append([]string(nil), s.CompletedSteps...)
	c.History = append([]llm.Message(nil), s.History...)
	c.Evidence = make([]Evidence, len(s.Evidence))
	for i, e := range s.Evidence {
		c.Evidence[i] = e
		if e.Metadata != nil {
			c.Evidence[i].Metadata = make(map[string]interface{}, len(e.Metadata))
			for k, v := range e.Metadata {
				c.Evidence[i].Metadata[k] = v
			}
		}
	}
	if s.Answer != nil {
		a := *s.Answer
		c.Answer = &a
	}
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	return c
}

// Update is the partial result of one node. Nil pointers and empty slices
// leave the corresponding field untouched.
type Update struct {
	Plan          *[]string
	ClearPlan     bool
	AppendSteps   []string
	Reflection    *string
	Iterations    *int
	IsSufficient  *bool
	AddEvidence   []Evidence
	AppendHistory []llm.Message
	Answer        *string
	Error         *string
}

// Apply merges u into s and returns how many evidence entries were new.
func (s *SessionState) Apply(u Update) int {
	switch {
	case u.ClearPlan:
		s.Plan = nil
	case u.Plan != nil:
		s.Plan = append([]string{}, (*u.Plan)...)
	}
	s.CompletedSteps = append(s.CompletedSteps, u.AppendSteps...)
	if u.Reflection != nil {
		s.Reflection = *u.Reflection
	}
	if u.Iterations != nil && *u.Iterations > s.Iterations {
		s.Iterations = *u.Iterations
	}
	if u.IsSufficient != nil {
		s.IsSufficient = *u.IsSufficient
	}
	added := MergeEvidence(s.Evidence, u.AddEvidence)
	s.Evidence = append(s.Evidence, added...)
	s.History = append(s.History, u.AppendHistory...)
	if u.Answer != nil {
		a := *u.Answer
		s.Answer = &a
	}
	if u.Error != nil {
		e := *u.Error
		s.Error = &e
	}
	return len(added)
}

// MergeEvidence returns the entries of incoming whose fingerprint appears
// neither in existing nor earlier in incoming, preserving order.
func MergeEvidence(existing, incoming []Evidence) []Evidence {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		seen[e.Fingerprint()] = struct{}{}
	}
	var out []Evidence
	for _, e := range incoming {
		fp := e.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, e)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
