package mode

// AgentSummary is the public face of an agent in a template listing.
type AgentSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Avatar  string `json:"avatar"`
	Color   string `json:"color"`
	Persona string `json:"persona"`
}

// Template describes a mode to end users choosing how to run a session.
type Template struct {
	ModeID        string         `json:"mode_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Icon          string         `json:"icon"`
	Agents        []AgentSummary `json:"agents"`
	UseCases      []string       `json:"use_cases"`
	EstimatedTime string         `json:"estimated_time"`
}

// Templates lists every mode of the catalog as a Template.
func (c *Catalog) Templates() []Template {
	out := make([]Template, 0, len(c.order))
	for _, m := range c.Modes() {
		out = append(out, templateOf(m))
	}
	return out
}

func templateOf(m Mode) Template {
	t := Template{
		ModeID:        m.ID,
		Name:          m.Name,
		Description:   m.Description,
		Icon:          m.Presentation.Icon,
		Agents:        make([]AgentSummary, 0, len(m.Agents)),
		UseCases:      m.Presentation.UseCases,
		EstimatedTime: m.Presentation.EstimatedTime,
	}
	if t.Icon == "" {
		t.Icon = "🤔"
	}
	if t.EstimatedTime == "" {
		t.EstimatedTime = "unknown"
	}
	if t.UseCases == nil {
		t.UseCases = []string{}
	}
	for _, a := range m.Agents {
		t.Agents = append(t.Agents, AgentSummary{
			ID:      a.ID,
			Name:    a.Name,
			Role:    a.Role,
			Avatar:  a.Avatar,
			Color:   a.Color,
			Persona: a.Persona,
		})
	}
	return t
}
