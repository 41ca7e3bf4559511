package upstreams

import (
	"errors"
	"sync"

	"github.com/vasanthk84/oi-analyzer/models"
)

var (
	// ErrUpstreamNotRegistered is returned when an upstream is not registered
	ErrUpstreamNotRegistered = errors.New("upstream not registered")

	// ErrUpstreamAlreadyRegistered is returned when registering a duplicate upstream
	ErrUpstreamAlreadyRegistered = errors.New("upstream already registered")

	// ErrNoCapableUpstream is returned when no enabled upstream provides a capability
	ErrNoCapableUpstream = errors.New("no enabled upstream provides the capability")
)

// Registry tracks the configured upstream clients. Routing asks it
// capability questions (who executes, who serves positions) instead of
// hard-coding upstream names. Registration order is preserved: when several
// upstreams provide a capability, the one registered first is preferred.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	order   []string
}

// NewRegistry creates an empty upstream registry
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

// Register adds an upstream client to the registry
func (r *Registry) Register(client Client) error {
	if client == nil {
		return errors.New("client cannot be nil")
	}

	name := client.Name()
	if name == "" {
		return errors.New("client name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[name]; exists {
		return ErrUpstreamAlreadyRegistered
	}

	r.clients[name] = client
	r.order = append(r.order, name)

	return nil
}

// Get retrieves an upstream client by name
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[name]
	if !exists {
		return nil, ErrUpstreamNotRegistered
	}

	return client, nil
}

// FirstWithCapability returns the first registered, enabled upstream that
// declares the capability.
func (r *Registry) FirstWithCapability(capability models.Capability) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		client := r.clients[name]
		if client.Target().Supports(capability) {
			return client, nil
		}
	}

	return nil, ErrNoCapableUpstream
}

// WithCapability returns every registered, enabled upstream that declares
// the capability, in registration order.
func (r *Registry) WithCapability(capability models.Capability) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []Client
	for _, name := range r.order {
		client := r.clients[name]
		if client.Target().Supports(capability) {
			matches = append(matches, client)
		}
	}

	return matches
}

// Names returns the registered upstream names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)

	return names
}

// All returns every registered client in registration order
func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]Client, 0, len(r.order))
	for _, name := range r.order {
		clients = append(clients, r.clients[name])
	}

	return clients
}

// Targets returns the configured identity of every registered upstream,
// in registration order. Used by status reporting.
func (r *Registry) Targets() []models.UpstreamTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]models.UpstreamTarget, 0, len(r.order))
	for _, name := range r.order {
		targets = append(targets, r.clients[name].Target())
	}

	return targets
}

// Count returns the number of registered upstreams
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
