// File: confgen/resolved.go
package confgen

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ResolvedSet is the final configuration for one root entity: a mapping
// from bare property key to its resolved value, plus each component's own
// sub-mapping. Key order follows resolution order, which is deterministic.
type ResolvedSet struct {
	values  map[string]Value
	origins map[string]string
	order   []string

	components     map[string]*ResolvedSet
	componentOrder []string
}

func newResolvedSet() *ResolvedSet {
	return &ResolvedSet{
		values:     make(map[string]Value),
		origins:    make(map[string]string),
		components: make(map[string]*ResolvedSet),
	}
}

// Get returns the value for a bare key and whether the key exists in the
// set. A key declared by some visited entity but valueless in every layer
// exists with an absent Value.
func (s *ResolvedSet) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the bare keys in resolution order.
func (s *ResolvedSet) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Origin reports the entity whose contribution produced the final value for
// a key. Empty for unknown keys.
func (s *ResolvedSet) Origin(key string) string {
	return s.origins[key]
}

// Component returns a component's own resolved sub-mapping.
func (s *ResolvedSet) Component(name string) (*ResolvedSet, bool) {
	c, ok := s.components[name]
	return c, ok
}

// ComponentNames returns component names in declaration order.
func (s *ResolvedSet) ComponentNames() []string {
	names := make([]string, len(s.componentOrder))
	copy(names, s.componentOrder)
	return names
}

// set records a value and its contributing entity, preserving first-seen
// key order.
func (s *ResolvedSet) set(key string, v Value, origin string) {
	if _, exists := s.values[key]; !exists {
		s.order = append(s.order, key)
	}
	s.values[key] = v
	if !v.IsAbsent() {
		s.origins[key] = origin
	}
}

func (s *ResolvedSet) addComponent(name string, sub *ResolvedSet) {
	if _, exists := s.components[name]; !exists {
		s.componentOrder = append(s.componentOrder, name)
	}
	s.components[name] = sub
}

// Map returns the present keys as a plain nested map, the shape handed to
// templates and to Scan. Absent keys are omitted entirely so templates can
// guard on their absence.
func (s *ResolvedSet) Map() map[string]any {
	m := make(map[string]any, len(s.values))
	for _, key := range s.order {
		v := s.values[key]
		if v.IsAbsent() {
			continue
		}
		m[key] = deepCopyValue(v.Interface())
	}
	return m
}

// Scan decodes the resolved configuration into a target struct or map
// pointer. Absent keys leave the target's fields untouched.
func (s *ResolvedSet) Scan(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan target must be non-nil pointer, got %T", target)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "confgen",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}

	if err := decoder.Decode(s.Map()); err != nil {
		return fmt.Errorf("failed to decode resolved configuration: %w", err)
	}
	return nil
}
