package dialect

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Dialect)
)

// Register adds a dialect to the global registry. It panics if the name is
// already taken; dialect packages register from init so a collision is a
// programming error.
func Register(d *Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[d.Name]; exists {
		panic(fmt.Sprintf("dialect: duplicate registration of %q", d.Name))
	}
	registry[d.Name] = d
}

// Get returns the registered dialect with the given name.
func Get(name string) (*Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("dialect: unknown dialect %q (available: %v)", name, listLocked())
	}
	return d, nil
}

// MustGet is like Get but panics on an unknown name. Intended for tests and
// init-time lookups.
func MustGet(name string) *Dialect {
	d, err := Get(name)
	if err != nil {
		panic(err)
	}
	return d
}

// List returns the registered dialect names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listLocked()
}

func listLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
