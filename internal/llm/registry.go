package llm

import "fmt"

// Analysis roles a model can be bound to.
const (
	RoleKeywords = "keywords"
	RoleRanking  = "ranking"
)

// ModelRoute binds a logical model to a provider and physical model name.
type ModelRoute struct {
	Name        string
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Registry resolves logical model names, or the analysis role bound to one,
// to a provider.
type Registry struct {
	providers    map[string]Provider
	models       map[string]ModelRoute
	roles        map[string]string
	defaultModel string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		models:    make(map[string]ModelRoute),
		roles:     make(map[string]string),
	}
}

// RegisterProvider adds a provider implementation.
func (r *Registry) RegisterProvider(name string, p Provider) {
	r.providers[name] = p
}

// RegisterModel adds a model route. The first model, or any marked default, becomes the default.
func (r *Registry) RegisterModel(name string, route ModelRoute, isDefault bool) {
	route.Name = name
	r.models[name] = route
	if isDefault || r.defaultModel == "" {
		r.defaultModel = name
	}
}

// BindRole makes role use model. An empty model unbinds the role.
func (r *Registry) BindRole(role, model string) {
	if model == "" {
		delete(r.roles, role)
		return
	}
	r.roles[role] = model
}

// DefaultModel returns the logical name used when none is requested.
func (r *Registry) DefaultModel() string {
	return r.defaultModel
}

// ForRole resolves the model bound to role, falling back to the default model.
func (r *Registry) ForRole(role string) (Provider, ModelRoute, error) {
	return r.Resolve(r.roles[role])
}

// Resolve returns the provider and route for a given model name (default if empty).
func (r *Registry) Resolve(modelName string) (Provider, ModelRoute, error) {
	if modelName == "" {
		modelName = r.defaultModel
	}

	route, ok := r.models[modelName]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("model %q not registered", modelName)
	}

	p, ok := r.providers[route.Provider]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("provider %q not registered for model %q", route.Provider, modelName)
	}

	return p, route, nil
}
