// Package report renders the message log of a finished run into the
// human-readable discussion report. Rendering is a pure function of the mode
// and the run state, so assembling the same state twice yields identical text.
package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/mode"
	"github.com/hupe1980/roundtable/tool"
)

const (
	ruleWidth      = 80
	maxSummary     = 150
	maxTitle       = 50
	maxListedTitle = 3
)

var (
	digestCounts = regexp.MustCompile(`This notebook contains (\d+) sources? and (\d+) notes?`)
	digestTitles = regexp.MustCompile(`### Source \d+: (.+)\n`)
)

// Assemble renders the report for state. Agents appear in mode order; error
// messages are left out.
func Assemble(m mode.Mode, state *core.RunState) string {
	rule := strings.Repeat("=", ruleWidth)

	var lines []string
	add := func(l ...string) { lines = append(lines, l...) }

	add(rule, fmt.Sprintf("  %s - Discussion Report", m.Name), rule, "")
	add("📌 Topic: " + state.Topic)
	add("📝 Mode: " + m.Description)
	if len(state.Messages) > 0 {
		add("⏰ Time: " + state.Messages[0].Timestamp.Format(time.RFC3339))
	}
	add(fmt.Sprintf("🔄 Rounds: %d rounds", state.MaxRounds))
	add(fmt.Sprintf("💬 Messages: %d messages", countOK(state.Messages)), "", rule)

	for _, a := range m.Agents {
		msgs := agentMessages(state.Messages, a.ID)
		if len(msgs) == 0 {
			continue
		}

		add("", fmt.Sprintf("## %s %s", a.Avatar, a.Name), "")

		// The final or integrate agent speaks in round max_rounds+1.
		for round := 1; round <= state.MaxRounds+1; round++ {
			for i, msg := range msgs {
				if msg.Round != round {
					continue
				}
				if len(msgs) > 1 && firstOfRound(msgs, i) {
					add(fmt.Sprintf("### Round %d", round), "")
				}
				if len(msg.ToolCalls) > 0 {
					add("**🔧 Tools Used:**", "")
					for _, call := range msg.ToolCalls {
						add(fmt.Sprintf("- **%s**: %s", call.ToolName, Summarize(call)))
					}
					add("")
				}
				add("**💬 Response:**", "", msg.Content, "")
			}
		}
	}

	add(rule, "📊 Report Generated Successfully", rule)

	return strings.Join(lines, "\n")
}

// Summarize renders a short description of a tool call instead of its raw
// output.
func Summarize(call core.ToolCall) string {
	out := call.Output

	if call.ToolName == tool.DocumentReaderToolID && strings.Contains(out, "Complete Notebook Content") {
		if s, ok := summarizeDigest(out); ok {
			return s
		}
	}

	if s, ok := summarizeSearch(out); ok {
		return s
	}

	return truncate(out, maxSummary, "...")
}

func summarizeDigest(out string) (string, bool) {
	counts := digestCounts.FindStringSubmatch(out)
	if counts == nil {
		return "", false
	}

	s := fmt.Sprintf("Read %s source(s) and %s note(s)", counts[1], counts[2])

	matches := digestTitles.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return s, true
	}

	titles := make([]string, 0, maxListedTitle)
	for _, m := range matches[:min(len(matches), maxListedTitle)] {
		titles = append(titles, m[1])
	}

	s += " (" + strings.Join(titles, ", ")
	if len(matches) > maxListedTitle {
		s += fmt.Sprintf(" and %d more", len(matches)-maxListedTitle)
	}

	return s + ")", true
}

func summarizeSearch(out string) (string, bool) {
	var parsed struct {
		Results *[]struct {
			Title *string `json:"title"`
			URL   string  `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil || parsed.Results == nil {
		return "", false
	}

	results := *parsed.Results
	title, url := "No results", ""
	if len(results) > 0 {
		title, url = "No title", results[0].URL
		if results[0].Title != nil {
			title = *results[0].Title
		}
	}

	return fmt.Sprintf("Found %d web results. Top: \"%s\" (%s)", len(results), truncate(title, maxTitle, ""), url), true
}

func agentMessages(all []core.AgentMessage, agentID string) []core.AgentMessage {
	var out []core.AgentMessage
	for _, m := range all {
		if m.AgentID == agentID && !m.Error {
			out = append(out, m)
		}
	}
	return out
}

func firstOfRound(msgs []core.AgentMessage, i int) bool {
	for _, m := range msgs[:i] {
		if m.Round == msgs[i].Round {
			return false
		}
	}
	return true
}

func countOK(msgs []core.AgentMessage) int {
	n := 0
	for _, m := range msgs {
		if !m.Error {
			n++
		}
	}
	return n
}

func truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}
