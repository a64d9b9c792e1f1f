package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/util"
)

// PreviousOpinionsKey is the placeholder holding all visible outputs.
const PreviousOpinionsKey = "previous_opinions"

// CanonicalPlaceholders maps well-known agent ids to their semantic slot.
var CanonicalPlaceholders = map[string]string{
	"supporter":  "supporter_opinion",
	"critic":     "critic_opinion",
	"visionary":  "visionary_ideas",
	"pragmatist": "pragmatist_ideas",
	"futurist":   "futurist_ideas",
}

// PromptVars builds the substitution map for a user prompt template.
// Context keys may shadow topic; visible outputs are added last.
func PromptVars(topic string, context map[string]any, previous []core.PreviousMessage) map[string]string {
	vars := make(map[string]string, len(context)+2*len(previous)+len(CanonicalPlaceholders)+2)
	vars["topic"] = topic

	for k, v := range context {
		if v == nil {
			vars[k] = ""
			continue
		}
		vars[k] = fmt.Sprint(v)
	}

	// Slots of agents that are not visible render empty, which is the normal
	// round 1 situation.
	for _, slot := range CanonicalPlaceholders {
		vars[slot] = ""
	}
	vars[PreviousOpinionsKey] = FormatPreviousOpinions(previous)

	for _, p := range previous {
		if slot, ok := CanonicalPlaceholders[p.AgentID]; ok {
			vars[slot] = p.Content
		}
		vars[p.AgentID+"_message"] = p.Content
	}

	return vars
}

// FormatPreviousOpinions renders the combined block of visible outputs.
func FormatPreviousOpinions(previous []core.PreviousMessage) string {
	if len(previous) == 0 {
		return ""
	}

	parts := make([]string, 0, len(previous))
	for _, p := range previous {
		parts = append(parts, fmt.Sprintf("\n【%s的观点】\n%s", p.AgentID, p.Content))
	}

	return strings.Join(parts, "\n")
}

// RenderPrompt renders template with vars.
func RenderPrompt(template string, vars map[string]string) (string, error) {
	out, err := util.RenderTemplate(template, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}
