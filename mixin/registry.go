package mixin

// Registry holds mixin definitions available for expansion within a single
// processing session. Later registrations replace earlier ones with the same
// name, registration order is remembered.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Set registers def, replacing any definition with the same name.
func (r *Registry) Set(def *Definition) {
	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
}

// Get returns the definition for the given mixin name.
func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns registered names in order of first registration.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	return len(r.defs)
}
