// File: confgen/hierarchy.go
package confgen

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ExpectedCapabilityVersion is the data-source merge-capability version this
// engine was built against. A source reporting a different version still
// works, but per-key merge-option passthrough is disabled (see Resolver).
const ExpectedCapabilityVersion = 2

// DataSource abstracts a layered key/value store queried by fully-qualified
// key. Layer ordering and layer contents are owned entirely by the
// implementation; the engine only supplies key, scope and policy.
type DataSource interface {
	// Lookup resolves one key against all applicable layers. A key with no
	// value in any layer returns Absent, not an error.
	Lookup(key string, scope Scope, policy MergePolicy) (Value, error)

	// CapabilityVersion reports the source's merge-option support version.
	CapabilityVersion() int
}

// Contribution names a layer that supplied a value for a key, in priority
// order.
type Contribution struct {
	Layer string
	Value any
}

var dimPattern = regexp.MustCompile(`%\{([a-zA-Z_][a-zA-Z0-9_-]*)\}`)

// LayeredSource resolves keys against an ordered list of data files rooted
// at a directory. Patterns are listed highest priority first and may
// reference scope dimensions, e.g. "node/%{node}", "env/%{env}", "common".
// A pattern referencing an unset dimension is skipped for that lookup.
type LayeredSource struct {
	dir      string
	patterns []string

	capability    int
	defaultPolicy MergePolicy
	logger        *slog.Logger

	// cache maps an expanded pattern to its flat key table; a nil entry
	// records a missing file so it is only stat'ed once per run.
	cache map[string]map[string]any
}

// LayeredSourceOption customizes a LayeredSource.
type LayeredSourceOption func(*LayeredSource)

// WithCapabilityVersion overrides the reported capability version. Used
// when fronting a store with older merge-option support.
func WithCapabilityVersion(v int) LayeredSourceOption {
	return func(s *LayeredSource) { s.capability = v }
}

// WithDefaultPolicy sets the policy applied when callers pass the zero
// policy.
func WithDefaultPolicy(p MergePolicy) LayeredSourceOption {
	return func(s *LayeredSource) { s.defaultPolicy = p }
}

// WithSourceLogger sets the logger for layer-skip diagnostics.
func WithSourceLogger(l *slog.Logger) LayeredSourceOption {
	return func(s *LayeredSource) { s.logger = l }
}

// NewLayeredSource creates a source over dir with the given layer patterns,
// highest priority first. The conventional hierarchy is
// ["node/%{node}", "role/%{role}", "env/%{env}", "common"].
func NewLayeredSource(dir string, patterns []string, opts ...LayeredSourceOption) *LayeredSource {
	s := &LayeredSource{
		dir:           dir,
		patterns:      patterns,
		capability:    ExpectedCapabilityVersion,
		defaultPolicy: DefaultComponentPolicy(),
		logger:        slog.Default(),
		cache:         make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultHierarchy is the conventional layer ordering: per-node data beats
// per-role, which beats per-environment, which beats common defaults.
func DefaultHierarchy() []string {
	return []string{"node/%{node}", "role/%{role}", "env/%{env}", "common"}
}

// CapabilityVersion implements DataSource.
func (s *LayeredSource) CapabilityVersion() int { return s.capability }

// Lookup implements DataSource.
func (s *LayeredSource) Lookup(key string, scope Scope, policy MergePolicy) (Value, error) {
	contributions, err := s.collect(key, scope)
	if err != nil {
		return Absent(), err
	}
	if len(contributions) == 0 {
		return Absent(), nil
	}

	effective := policy
	if effective == (MergePolicy{}) {
		effective = s.defaultPolicy
	}
	effective = effective.normalized()

	if effective.Lookup == LookupFirstFound {
		return Present(deepCopyValue(contributions[0].Value)), nil
	}

	result := Absent()
	for _, c := range contributions {
		result = mergeValues(result, Present(c.Value), effective)
	}
	return result, nil
}

// Explain returns the layers contributing a value for key under scope, in
// priority order. Intended for diagnostics.
func (s *LayeredSource) Explain(key string, scope Scope) ([]Contribution, error) {
	return s.collect(key, scope)
}

// collect walks the layers highest priority first and gathers raw values
// for the key.
func (s *LayeredSource) collect(key string, scope Scope) ([]Contribution, error) {
	var contributions []Contribution
	for _, pattern := range s.patterns {
		name, ok := expandPattern(pattern, scope)
		if !ok {
			continue
		}
		table, err := s.layerTable(name)
		if err != nil {
			return nil, err
		}
		if table == nil {
			continue
		}
		if raw, exists := table[key]; exists {
			contributions = append(contributions, Contribution{Layer: name, Value: raw})
		}
	}
	return contributions, nil
}

// layerTable loads and caches the flat key table for one expanded layer
// name. Returns nil (no error) when no data file exists for the layer.
func (s *LayeredSource) layerTable(name string) (map[string]any, error) {
	if table, loaded := s.cache[name]; loaded {
		return table, nil
	}

	var (
		data []byte
		path string
	)
	found := false
	for _, ext := range descriptorExtensions {
		candidate := filepath.Join(s.dir, filepath.FromSlash(name)+ext)
		b, err := os.ReadFile(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read data layer '%s': %w", candidate, err)
		}
		data, path, found = b, candidate, true
		break
	}
	if !found {
		s.logger.Debug("no data file for layer", "layer", name)
		s.cache[name] = nil
		return nil, nil
	}

	doc, err := parseDocument(path, data)
	if err != nil {
		return nil, err
	}

	table, err := flattenLayer(doc)
	if err != nil {
		return nil, fmt.Errorf("data layer '%s': %w", path, err)
	}
	s.cache[name] = table
	return table, nil
}

// flattenLayer converts a parsed layer document into a flat map of
// fully-qualified keys. Top-level tables expand one level to
// `<namespace>::<property>`; top-level keys already containing the
// qualifier are taken verbatim.
func flattenLayer(doc map[string]any) (map[string]any, error) {
	flat := make(map[string]any)
	for top, value := range doc {
		if strings.Contains(top, "::") {
			flat[top] = value
			continue
		}
		table, isMap := value.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("top-level entry %q is not a table; data keys must be namespaced", top)
		}
		for prop, propValue := range table {
			flat[qualifiedKey(top, prop)] = propValue
		}
	}
	return flat, nil
}

// expandPattern substitutes %{dim} references from the scope. The second
// return value is false when any referenced dimension is unset.
func expandPattern(pattern string, scope Scope) (string, bool) {
	complete := true
	expanded := dimPattern.ReplaceAllStringFunc(pattern, func(m string) string {
		dim := dimPattern.FindStringSubmatch(m)[1]
		v, ok := scope.Get(dim)
		if !ok || v == "" {
			complete = false
			return ""
		}
		return v
	})
	if !complete {
		return "", false
	}
	return expanded, true
}
