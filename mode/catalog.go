package mode

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCatalog []byte

// Catalog is a validated, ordered set of modes.
type Catalog struct {
	order []string
	modes map[string]Mode
}

// NewCatalog validates the given modes and builds a catalog preserving their order.
func NewCatalog(modes ...Mode) (*Catalog, error) {
	c := &Catalog{modes: make(map[string]Mode, len(modes))}
	var errs []error
	for _, m := range modes {
		if _, dup := c.modes[m.ID]; dup {
			errs = append(errs, &ConfigError{Mode: m.ID, Message: "duplicate mode id"})
			continue
		}
		if err := Validate(m); err != nil {
			errs = append(errs, err)
			continue
		}
		c.order = append(c.order, m.ID)
		c.modes[m.ID] = m.Clone()
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseCatalog decodes a YAML document mapping mode ids to mode definitions.
// Document order is preserved.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse modes: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse modes: %w: empty document", ErrInvalidConfig)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse modes: %w: top level must map mode ids to modes", ErrInvalidConfig)
	}

	modes := make([]Mode, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		id := root.Content[i].Value

		var m Mode
		if err := root.Content[i+1].Decode(&m); err != nil {
			return nil, fmt.Errorf("parse mode %q: %w", id, err)
		}

		m.ID = id
		for j := range m.Agents {
			m.Agents[j].SystemPrompt = strings.TrimSpace(m.Agents[j].SystemPrompt)
			m.Agents[j].UserPromptTemplate = strings.TrimSpace(m.Agents[j].UserPromptTemplate)
		}

		modes = append(modes, m)
	}

	return NewCatalog(modes...)
}

// LoadCatalog reads and parses a YAML catalog file. Environment variables in
// the file are expanded before parsing.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modes file: %w", err)
	}
	return ParseCatalog([]byte(os.ExpandEnv(string(data))))
}

// DefaultCatalog returns the built-in dialectical and brainstorm modes.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("mode: built-in catalog is invalid: %v", err))
	}
	return c
}

// Get returns a copy of the mode with the given id.
func (c *Catalog) Get(id string) (Mode, error) {
	m, ok := c.modes[id]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %s (available: %s)", ErrUnknownMode, id, strings.Join(c.order, ", "))
	}
	return m.Clone(), nil
}

// IDs lists mode ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Modes returns copies of all modes in catalog order.
func (c *Catalog) Modes() []Mode {
	out := make([]Mode, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.modes[id].Clone())
	}
	return out
}
