package oracle

import "time"

// Default retry policy.
const (
	DefaultAttempts = 2
	DefaultBackoff  = 1500 * time.Millisecond
)

// DefaultVariants is the model fallback order.
var DefaultVariants = []string{"gemini-2.5-flash", "gemini-1.5-flash-latest"}

// Policy is the retry plan: every variant in order, Attempts calls each,
// Backoff between calls of the same variant.
type Policy struct {
	Variants []string
	Attempts int
	Backoff  time.Duration
}

// DefaultPolicy returns the standard retry plan.
func DefaultPolicy() Policy {
	return Policy{
		Variants: append([]string(nil), DefaultVariants...),
		Attempts: DefaultAttempts,
		Backoff:  DefaultBackoff,
	}
}

// Outcome is the result of one attempt as seen by the policy.
type Outcome int

// Attempt outcomes.
const (
	Succeeded Outcome = iota
	Failed
	Aborted
)

// Action tells the invoker what to do next.
type Action int

// Policy actions.
const (
	Call Action = iota
	Done
	Exhausted
	Abort
)

func (a Action) String() string {
	switch a {
	case Call:
		return "call"
	case Done:
		return "done"
	case Exhausted:
		return "exhausted"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// State is the position in the plan. Attempt is 1-based within the variant;
// Total counts calls across variants.
type State struct {
	Variant int
	Attempt int
	Total   int
}

// Step is one transition: the action, the state it leads to, and how long to
// wait before acting.
type Step struct {
	Action Action
	State  State
	Wait   time.Duration
}

// Start returns the first step.
func (p Policy) Start() Step {
	if len(p.Variants) == 0 || p.Attempts <= 0 {
		return Step{Action: Exhausted}
	}
	return Step{Action: Call, State: State{Variant: 0, Attempt: 1, Total: 1}}
}

// Next returns the step that follows outcome o in state s.
func (p Policy) Next(s State, o Outcome) Step {
	switch o {
	case Succeeded:
		return Step{Action: Done, State: s}
	case Aborted:
		return Step{Action: Abort, State: s}
	}

	if s.Attempt < p.Attempts {
		return Step{
			Action: Call,
			State:  State{Variant: s.Variant, Attempt: s.Attempt + 1, Total: s.Total + 1},
			Wait:   p.Backoff,
		}
	}
	if s.Variant+1 < len(p.Variants) {
		return Step{
			Action: Call,
			State:  State{Variant: s.Variant + 1, Attempt: 1, Total: s.Total + 1},
		}
	}
	return Step{Action: Exhausted, State: s}
}

// Model returns the variant a state calls.
func (p Policy) Model(s State) string {
	if s.Variant < 0 || s.Variant >= len(p.Variants) {
		return ""
	}
	return p.Variants[s.Variant]
}

// MaxCalls is the worst-case number of oracle calls.
func (p Policy) MaxCalls() int { return len(p.Variants) * max(p.Attempts, 0) }

// WorstCase is the upper bound on time spent waiting between calls.
func (p Policy) WorstCase() time.Duration {
	return time.Duration(len(p.Variants)*max(p.Attempts-1, 0)) * p.Backoff
}
