package tool

import (
	"net/http"
	"sort"
	"sync"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// Scope carries the per-run inputs tool factories may depend on.
type Scope struct {
	// Collection is the document collection the run is about.
	Collection string
}

// Factory builds a tool instance for one scope. Factories that need
// credentials fail with ErrMissingCredential when they are absent.
type Factory func(scope Scope) (Tool, error)

// Registry resolves configured tool ids to tool instances. Unknown ids and
// failing factories are logged and skipped; resolution itself never fails.
// A Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
	logger    logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		factories: map[string]Factory{},
		aliases:   map[string]string{},
		logger:    opts.Logger,
	}
}

// Register binds id to a factory, replacing any previous binding.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// RegisterTool binds id to a fixed, scope independent tool instance.
func (r *Registry) RegisterTool(id string, t Tool) {
	r.Register(id, func(Scope) (Tool, error) { return t, nil })
}

// Alias makes alias resolve to the tool registered under id.
func (r *Registry) Alias(alias, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = id
}

// IDs lists registered ids and aliases, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories)+len(r.aliases))
	for id := range r.factories {
		ids = append(ids, id)
	}
	for alias := range r.aliases {
		ids = append(ids, alias)
	}
	sort.Strings(ids)

	return ids
}

// Has reports whether id (or an alias of it) is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

func (r *Registry) lookup(id string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.aliases[id]; ok {
		id = target
	}

	f, ok := r.factories[id]
	return f, ok
}

// Resolve builds the tools for the given ids in order. Duplicate tool names
// keep the first instance.
func (r *Registry) Resolve(ids []string, scope Scope) []Tool {
	tools := make([]Tool, 0, len(ids))
	seen := map[string]bool{}

	for _, id := range ids {
		f, ok := r.lookup(id)
		if !ok {
			r.logger.Warn("tool.unknown_id", "tool_id", id)
			continue
		}

		t, err := f(scope)
		if err != nil {
			r.logger.Error("tool.create_failed", "tool_id", id, "error", err)
			continue
		}

		if seen[t.Name()] {
			continue
		}
		seen[t.Name()] = true

		r.logger.Debug("tool.resolved", "tool_id", id, "tool", t.Name())
		tools = append(tools, t)
	}

	return tools
}

// DefaultsConfig supplies the dependencies of the built-in tools.
type DefaultsConfig struct {
	TavilyAPIKey string
	// SearchEndpoint overrides the Tavily endpoint (tests).
	SearchEndpoint string
	HTTPClient     *http.Client
	Documents      core.DocumentStore
	Logger         logging.Logger
}

// NewDefaultRegistry registers the built-in tools: calculator, tavily_search
// (alias web_search) and notebook_reader.
func NewDefaultRegistry(cfg DefaultsConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}

	r := NewRegistry(func(o *RegistryOptions) { o.Logger = cfg.Logger })

	calc := NewCalculator()
	r.RegisterTool(CalculatorToolID, calc)

	r.Register(SearchToolID, func(Scope) (Tool, error) {
		s, err := NewSearch(cfg.TavilyAPIKey, func(o *SearchOptions) {
			if cfg.SearchEndpoint != "" {
				o.Endpoint = cfg.SearchEndpoint
			}
			if cfg.HTTPClient != nil {
				o.HTTPClient = cfg.HTTPClient
			}
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	r.Alias("web_search", SearchToolID)

	r.Register(DocumentReaderToolID, func(s Scope) (Tool, error) {
		return NewDocumentReader(cfg.Documents, s.Collection, func(o *DocumentReaderOptions) {
			o.Logger = cfg.Logger
		}), nil
	})

	return r
}
