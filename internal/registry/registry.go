package registry

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/danpasecinic/harvester/internal/types"
)

// ErrJobNotFound is matched by NotFoundError via errors.Is
var ErrJobNotFound = errors.New("job not found")

// NotFoundError reports a job type that is unknown or has no bound implementation.
type NotFoundError struct {
	JobType string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %q is not registered or has no available implementation", e.JobType)
}

// Is makes errors.Is(err, ErrJobNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// Implementation is one candidate binding for a job type. Build returns an
// error when the implementation cannot be used in this process.
type Implementation struct {
	Tier  string
	Build func() (types.JobFunc, error)
}

// Definition describes a job type and its default parameters.
type Definition struct {
	Name        string
	Description string
	Defaults    map[string]any
}

type entry struct {
	def   Definition
	impls []Implementation
	tier  string
	fn    types.JobFunc
}

// Registry maps job-type names to implementations. Candidates are tried in
// registration order on Load and the first one that builds wins.
// Registry is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]*entry)}
}

// Register declares a job type with its candidate implementations, preferred
// first. Registering an existing name replaces it.
func (r *Registry) Register(def Definition, impls ...Implementation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[def.Name] = &entry{def: def, impls: impls}
}

// Load binds every job type to its best available implementation.
// It is safe to call repeatedly; a job keeps its previous binding when no
// candidate builds on a later call. Returns the number of bound job types.
// Build runs without the registry lock held, so lookups proceed during a reload.
func (r *Registry) Load() int {
	type candidate struct {
		name  string
		e     *entry
		impls []Implementation
	}

	r.mu.RLock()
	names := r.sortedNames()
	candidates := make([]candidate, 0, len(names))
	for _, name := range names {
		e := r.jobs[name]
		candidates = append(candidates, candidate{name: name, e: e, impls: e.impls})
	}
	r.mu.RUnlock()

	type binding struct {
		tier string
		fn   types.JobFunc
	}
	built := make(map[string]binding, len(candidates))
	for _, c := range candidates {
		for _, impl := range c.impls {
			fn, err := impl.Build()
			if err != nil {
				log.Printf("[registry] job=%s tier=%s unavailable: %v", c.name, impl.Tier, err)
				continue
			}
			if fn == nil {
				log.Printf("[registry] job=%s tier=%s returned no implementation", c.name, impl.Tier)
				continue
			}
			built[c.name] = binding{tier: impl.Tier, fn: fn}
			break
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bound := 0
	for _, c := range candidates {
		// Replaced by Register during the build; the next Load binds the new entry.
		if r.jobs[c.name] != c.e {
			continue
		}
		e := c.e
		if b, ok := built[c.name]; ok {
			if e.tier != b.tier {
				log.Printf("[registry] job=%s bound to tier=%s", c.name, b.tier)
			}
			e.fn = b.fn
			e.tier = b.tier
		} else if e.fn != nil {
			log.Printf("[registry] job=%s no candidate loaded, keeping tier=%s", c.name, e.tier)
		}
	}
	for _, e := range r.jobs {
		if e.fn != nil {
			bound++
		}
	}

	return bound
}

// IsAvailable reports whether name resolves to an implementation.
func (r *Registry) IsAvailable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[name]
	return ok && e.fn != nil
}

// Resolve returns the bound implementation for name.
func (r *Registry) Resolve(name string) (types.JobFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[name]
	if !ok || e.fn == nil {
		return nil, &NotFoundError{JobType: name}
	}
	return e.fn, nil
}

// DefaultConfig returns the job defaults merged with overrides. Overrides win.
// Unknown job types yield a copy of overrides.
func (r *Registry) DefaultConfig(name string, overrides map[string]any) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]any)
	if e, ok := r.jobs[name]; ok {
		for k, v := range e.def.Defaults {
			merged[k] = v
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Available returns the names of all bound job types, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobs))
	for _, name := range r.sortedNames() {
		if r.jobs[name].fn != nil {
			names = append(names, name)
		}
	}
	return names
}

// Jobs describes every registered job type, sorted by name.
func (r *Registry) Jobs() []types.JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]types.JobInfo, 0, len(r.jobs))
	for _, name := range r.sortedNames() {
		e := r.jobs[name]
		infos = append(
			infos, types.JobInfo{
				Name:        name,
				Description: e.def.Description,
				Tier:        e.tier,
				Available:   e.fn != nil,
			},
		)
	}
	return infos
}

// sortedNames returns registered names in order. Caller holds r.mu.
func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
