package source

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrRegistryFrozen = errors.New("source registry is frozen")

type entry struct {
	match      string
	capability Capability
}

// Registry resolves a product locator to the capability that fetches it.
//
// Entries are evaluated in registration order and the first entry whose match
// token occurs in the locator wins, even when a later token is longer or more
// specific. Register specific tokens ("shop.example.com/outlet") before broad
// ones ("example.com").
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	frozen  bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a capability under match. Matching is case-insensitive.
func (r *Registry) Register(match string, c Capability) error {
	match = strings.ToLower(strings.TrimSpace(match))
	if match == "" {
		return fmt.Errorf("source registry: empty match token")
	}
	if c == nil {
		return fmt.Errorf("source registry: nil capability for %s", match)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	for _, e := range r.entries {
		if e.match == match {
			return fmt.Errorf("source registry: match %s already registered to %s", match, e.capability.Name())
		}
	}
	r.entries = append(r.entries, entry{match: match, capability: c})
	return nil
}

// Freeze ends the registration phase; later Register calls fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Resolve returns the first registered capability whose token is a substring
// of locator. ok is false when nothing matches.
func (r *Registry) Resolve(locator string) (Capability, bool) {
	target := strings.ToLower(strings.TrimSpace(locator))
	if target == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if strings.Contains(target, e.match) {
			return e.capability, true
		}
	}
	return nil, false
}

// Matches lists the registered tokens in evaluation order.
func (r *Registry) Matches() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.match)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
