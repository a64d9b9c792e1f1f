package mode

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every configuration error.
	ErrInvalidConfig = errors.New("invalid mode configuration")
	// ErrUnknownMode is returned when a mode id is not in the catalog.
	ErrUnknownMode = errors.New("unknown mode")
)

// ConfigError describes one structural problem of a mode.
type ConfigError struct {
	Mode    string `json:"mode"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("mode %q: %s", e.Mode, e.Message)
	}
	return fmt.Sprintf("mode %q: %s: %s", e.Mode, e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) hold.
func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks a mode for structural consistency. All problems are
// reported, joined with errors.Join.
func Validate(m Mode) error {
	v := &validator{mode: m, known: map[string]bool{}}
	v.agents()
	v.workflow()
	return errors.Join(v.errs...)
}

type validator struct {
	mode  Mode
	known map[string]bool
	errs  []error
}

func (v *validator) fail(field, format string, args ...any) {
	v.errs = append(v.errs, &ConfigError{Mode: v.mode.ID, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) agents() {
	if v.mode.ID == "" {
		v.fail("id", "must not be empty")
	}
	if len(v.mode.Agents) == 0 {
		v.fail("agents", "at least one agent is required")
	}
	for i, a := range v.mode.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if a.ID == "" {
			v.fail(field+".id", "must not be empty")
			continue
		}
		if v.known[a.ID] {
			v.fail(field+".id", "duplicate agent id %q", a.ID)
		}
		v.known[a.ID] = true
		if a.Temperature < 0 || a.Temperature > 2 {
			v.fail(field+".temperature", "%v out of range [0,2]", a.Temperature)
		}
		if a.UserPromptTemplate == "" {
			v.fail(field+".user_prompt_template", "must not be empty")
		}
	}
}

func (v *validator) workflow() {
	wf := v.mode.Workflow
	if wf.Rounds < 1 {
		v.fail("workflow.rounds", "must be at least 1, got %d", wf.Rounds)
	}
	if len(wf.Steps) == 0 {
		v.fail("workflow.steps", "at least one step is required")
		return
	}
	for i, s := range wf.Steps {
		field := fmt.Sprintf("workflow.steps[%d]", i)
		ids := s.AgentIDs()
		if len(ids) == 0 {
			v.fail(field, "step names no agent")
		}
		for _, id := range ids {
			if !v.known[id] {
				v.fail(field, "unknown agent %q", id)
			}
		}
		for _, id := range s.Context {
			if !v.known[id] {
				v.fail(field+".context", "unknown agent %q", id)
			}
		}
	}

	switch wf.Type {
	case WorkflowSequential:
		v.sequential()
	case WorkflowMixed:
		v.mixed()
	default:
		v.fail("workflow.type", "unknown workflow type %q", wf.Type)
	}
}

func (v *validator) sequential() {
	for i, s := range v.mode.Workflow.Steps {
		if n := len(s.AgentIDs()); n > 1 {
			v.fail(fmt.Sprintf("workflow.steps[%d]", i), "sequential steps name exactly one agent, got %d", n)
		}
	}
}

func (v *validator) mixed() {
	var diverge, integrate int
	for i, s := range v.mode.Workflow.Steps {
		field := fmt.Sprintf("workflow.steps[%d]", i)
		switch s.Phase {
		case PhaseDiverge:
			diverge++
			seen := map[string]bool{}
			for _, id := range s.Agents {
				if seen[id] {
					v.fail(field, "agent %q listed twice", id)
				}
				seen[id] = true
			}
		case PhaseIntegrate:
			integrate++
			if n := len(s.AgentIDs()); n != 1 {
				v.fail(field, "integrate step names exactly one agent, got %d", n)
			}
		default:
			v.fail(field+".phase", "mixed workflows accept only %q or %q, got %q", PhaseDiverge, PhaseIntegrate, s.Phase)
		}
	}
	if diverge != 1 || integrate != 1 {
		v.fail("workflow.steps", "mixed workflow requires exactly one diverge and one integrate phase (got %d diverge, %d integrate)", diverge, integrate)
	}
}
