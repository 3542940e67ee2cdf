// File: confgen/scope.go
package confgen

import (
	"sort"
	"strings"
)

// Well-known scope dimensions. Data layers and descriptors may introduce
// further dimensions; the engine treats names opaquely.
const (
	DimService   = "service"
	DimModule    = "module"
	DimComponent = "component"
	DimEnv       = "env"
	DimNode      = "node"
	DimRole      = "role"
)

// Scope maps context-dimension names to their current values and
// parameterizes hierarchy lookups. Scopes are treated as immutable: With
// returns a narrowed copy, so narrowing inside one branch of a dependency
// walk never leaks into sibling branches.
type Scope map[string]string

// NewScope builds a scope from dimension/value pairs.
func NewScope(pairs ...string) Scope {
	s := make(Scope, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		s[pairs[i]] = pairs[i+1]
	}
	return s
}

// With returns a copy of the scope with one dimension added or replaced.
func (s Scope) With(dim, value string) Scope {
	narrowed := make(Scope, len(s)+1)
	for k, v := range s {
		narrowed[k] = v
	}
	narrowed[dim] = value
	return narrowed
}

// Clone returns an independent copy.
func (s Scope) Clone() Scope {
	c := make(Scope, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Get returns the value for a dimension and whether it is set.
func (s Scope) Get(dim string) (string, bool) {
	v, ok := s[dim]
	return v, ok
}

func (s Scope) String() string {
	dims := make([]string, 0, len(s))
	for k := range s {
		dims = append(dims, k)
	}
	sort.Strings(dims)
	parts := make([]string, 0, len(dims))
	for _, k := range dims {
		parts = append(parts, k+"="+s[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
