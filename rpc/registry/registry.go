package registry

import (
	"context"
	"fmt"
	"sort"
)

// --------------------------------------------------------------------------
// Entry Structure
// --------------------------------------------------------------------------

// HandlerFunc is the callable behind a registry entry. The context is
// threaded explicitly through the dispatcher; params hold the normalized,
// camelCase-keyed parameter map. A returned error becomes an error
// envelope with the error's message.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// Parameter describes one declared parameter of an entry, in handler
// convention (camelCase) naming.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Entry is a named, invocable operation. Description and Example are
// human-readable metadata carried through for schema consumers; the core
// never interprets them.
type Entry struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Example     string      `json:"example,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Handler     HandlerFunc `json:"-"`
}

// MissingParameterError reports a required parameter that was not
// provided. Never substituted with a default.
type MissingParameterError struct {
	Command   string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("Required parameter '%s' not provided for '%s'", e.Parameter, e.Command)
}

// Invoke validates required parameters, coerces declared types and calls
// the handler. Parameters not declared by the entry pass through
// untouched.
func (e *Entry) Invoke(ctx context.Context, params map[string]any) (any, error) {
	if params == nil {
		params = map[string]any{}
	}

	for _, p := range e.Parameters {
		v, ok := params[p.Name]
		if !ok {
			if p.Required {
				return nil, &MissingParameterError{Command: e.Name, Parameter: p.Name}
			}
			continue
		}
		coerced, err := Coerce(p.Type, v)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %v", p.Name, err)
		}
		params[p.Name] = coerced
	}

	return e.Handler(ctx, params)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry maps names to entries, with separate namespaces for commands
// (tools) and resources. Build it once at startup, then only look up;
// lookups take no locks.
type Registry struct {
	tools     map[string]*Entry
	resources map[string]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:     make(map[string]*Entry),
		resources: make(map[string]*Entry),
	}
}

// Register adds a command entry. Names are unique and case-sensitive.
func (r *Registry) Register(entry *Entry) error {
	return register(r.tools, entry)
}

// RegisterResource adds a named resource entry, looked up through the
// reserved resource dispatch command.
func (r *Registry) RegisterResource(entry *Entry) error {
	return register(r.resources, entry)
}

func register(table map[string]*Entry, entry *Entry) error {
	if entry == nil || entry.Name == "" {
		return fmt.Errorf("entry must have a name")
	}
	if entry.Handler == nil {
		return fmt.Errorf("entry '%s' must have a handler", entry.Name)
	}
	if _, exists := table[entry.Name]; exists {
		return fmt.Errorf("entry '%s' already registered", entry.Name)
	}
	table[entry.Name] = entry
	return nil
}

// Lookup resolves a command name. Exact, case-sensitive match only.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	e, ok := r.tools[name]
	return e, ok
}

// LookupResource resolves a resource name. Exact, case-sensitive match.
func (r *Registry) LookupResource(name string) (*Entry, bool) {
	e, ok := r.resources[name]
	return e, ok
}

// Tools returns all command entries sorted by name.
func (r *Registry) Tools() []*Entry {
	return sorted(r.tools)
}

// Resources returns all resource entries sorted by name.
func (r *Registry) Resources() []*Entry {
	return sorted(r.resources)
}

// Schema returns the carried-through metadata of every entry, in the
// shape the get_schema command reports to clients.
func (r *Registry) Schema() map[string]any {
	return map[string]any{
		"tools":     r.Tools(),
		"resources": r.Resources(),
	}
}

func sorted(table map[string]*Entry) []*Entry {
	entries := make([]*Entry, 0, len(table))
	for _, e := range table {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}
