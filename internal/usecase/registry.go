package usecase

import (
	"sort"
	"strings"
	"sync"

	"devagents/internal/domain"
)

// Constructor builds an agent bound to one execution context. Constructors
// must not perform side effects beyond object construction; configuration
// problems are reported as errors wrapping domain.ErrConfigInvalid.
type Constructor func(ectx *domain.ExecutionContext) (domain.Agent, error)

// Registry maps agent identifiers to constructors. Identifiers are
// case-sensitive and unique for the lifetime of the process. The registry
// is populated once at bootstrap; reads afterwards are concurrent-safe.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under name. Registering a duplicate name is
// rejected with domain.ErrAgentDuplicate: bootstrap code that registers
// the same identifier twice is a programming error we want surfaced, not
// silently resolved by overwrite order.
func (r *Registry) Register(name string, ctor Constructor) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewDomainError("Registry.Register", domain.ErrInvalidInput, "empty agent identifier")
	}
	if ctor == nil {
		return domain.NewDomainError("Registry.Register", domain.ErrInvalidInput, "nil constructor for "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrAgentDuplicate, name)
	}
	r.constructors[name] = ctor
	return nil
}

// Resolve returns the constructor for a known identifier. Unknown
// identifiers fail with domain.ErrAgentNotFound; the detail lists the
// registered names so misconfigurations are diagnosable from the error
// alone. Lookup never mutates the registry.
func (r *Registry) Resolve(name string) (Constructor, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()

	if !ok {
		detail := name + " (registered: " + strings.Join(r.Names(), ", ") + ")"
		return nil, domain.NewDomainError("Registry.Resolve", domain.ErrAgentNotFound, detail)
	}
	return ctor, nil
}

// Names returns the sorted registered identifiers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
