// File: confgen/resolver.go
package confgen

import (
	"errors"
	"fmt"
	"log/slog"
)

// Resolver walks an entity's declared dependency graph and produces its
// flattened configuration set. One Resolver may serve many roots; it holds
// no per-run state.
type Resolver struct {
	registry Registry
	source   DataSource
	logger   *slog.Logger

	// passthrough is false when the data source's capability version
	// differs from the one this engine was built against. Per-key merge
	// options are then withheld and the source's defaults apply.
	passthrough bool
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for warnings and skip diagnostics.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver over a descriptor registry and a
// hierarchical data source. A capability version mismatch between the
// source and the engine degrades to the source's default merge behavior
// with a warning; it is never fatal.
func NewResolver(registry Registry, source DataSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry:    registry,
		source:      source,
		logger:      slog.Default(),
		passthrough: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if v := source.CapabilityVersion(); v != ExpectedCapabilityVersion {
		r.passthrough = false
		r.logger.Warn("data source merge capability differs from expected; per-key merge options disabled",
			"got", v, "expected", ExpectedCapabilityVersion)
	}
	return r
}

// Resolve produces the resolved configuration set for one root entity.
// Sub-module dependencies are visited depth-first in declaration order, so
// deeper dependencies resolve first and closer entities override them.
// Service components resolve last, each independently.
func (r *Resolver) Resolve(name string, kind Kind, scope Scope) (*ResolvedSet, error) {
	if kind == KindComponent {
		// A component requested as root resolves its own block directly,
		// with no service tuning its policy.
		return r.resolveComponent(name, nil, scope, nil)
	}
	set := newResolvedSet()
	visited := make(map[string]bool)
	if err := r.resolveEntity(name, kind, scope, set, nil, visited); err != nil {
		return nil, err
	}
	return set, nil
}

func (r *Resolver) resolveEntity(name string, kind Kind, scope Scope, acc *ResolvedSet, path []string, visited map[string]bool) error {
	for _, ancestor := range path {
		if ancestor == name {
			return &CircularDependencyError{Path: append(append([]string{}, path...), name)}
		}
	}

	desc, err := r.registry.LoadDescriptor(name, kind)
	if err != nil {
		return err
	}
	path = append(path, name)

	// Sub-module dependencies first. Each branch resolves into its own set
	// so conflicting contributions from independent branches can be told
	// apart from legitimate overrides.
	for _, dep := range desc.Dependencies {
		// A diamond dependency is resolved once; the second occurrence is
		// skipped rather than re-resolved so each unique entity is visited
		// exactly once per root resolution.
		if visited[registryKey(dep, KindSubModule)] {
			continue
		}
		if _, err := r.registry.LoadDescriptor(dep, KindSubModule); err != nil {
			if errors.Is(err, ErrEntityNotFound) && desc.IsOptional(dep) {
				r.logger.Warn("skipping optional dependency with no descriptor",
					"entity", name, "dependency", dep)
				continue
			}
			return fmt.Errorf("dependency of %s %q: %w", kind, name, err)
		}

		branch := newResolvedSet()
		if err := r.resolveEntity(dep, KindSubModule, scope, branch, path, visited); err != nil {
			return err
		}
		if err := r.mergeBranch(acc, branch, desc); err != nil {
			return err
		}
	}

	// The entity's own declared keys override anything its dependencies
	// contributed for the same key.
	entityScope := scope.With(dimForKind(kind), name)
	for _, key := range desc.Keys {
		policy := r.effectivePolicy(desc, key)
		value, err := r.source.Lookup(qualifiedKey(name, key), entityScope, policy)
		if err != nil {
			return fmt.Errorf("lookup %q for %s %q: %w", key, kind, name, err)
		}

		origin := name
		existing, seen := acc.Get(key)
		if seen && !value.IsAbsent() {
			value = mergeValues(value, existing, policy)
		} else if seen && value.IsAbsent() {
			// A dependency's value survives, origin included, when the entity
			// itself has no data in any layer.
			value = existing
			origin = acc.Origin(key)
		}
		acc.set(key, value, origin)
	}

	// Components last. They never recurse into further components and each
	// one's contribution is additionally kept as its own sub-mapping so it
	// can be rendered into its own artifact.
	for _, comp := range desc.Components {
		sub, err := r.resolveComponent(comp, desc, scope, path)
		if err != nil {
			return err
		}
		acc.addComponent(comp, sub)
		acc.set(comp, Present(sub.Map()), comp)
	}

	// Marked only after the whole subtree completed, so cycle detection via
	// the path check is never short-circuited.
	visited[registryKey(name, kind)] = true
	return nil
}

// mergeBranch folds a fully resolved dependency branch into the
// accumulator. A key contributed with different values by two independent
// branches is ambiguous unless the declaring ancestor overrides it with a
// key of its own.
func (r *Resolver) mergeBranch(acc, branch *ResolvedSet, ancestor *Descriptor) error {
	for _, key := range branch.Keys() {
		incoming, _ := branch.Get(key)
		existing, seen := acc.Get(key)

		if seen && !existing.Equal(incoming) && !existing.IsAbsent() && !incoming.IsAbsent() {
			if !containsString(ancestor.Keys, key) {
				return &AmbiguousOverrideError{
					Key:      key,
					Ancestor: ancestor.Name,
					Branches: [2]string{acc.Origin(key), branch.Origin(key)},
				}
			}
		}

		policy := r.effectivePolicy(ancestor, key)
		merged := mergeValues(incoming, existing, policy)
		origin := branch.Origin(key)
		if merged.IsAbsent() || origin == "" {
			origin = acc.Origin(key)
		}
		acc.set(key, merged, origin)
	}
	return nil
}

// resolveComponent resolves one component's structural value. Component
// properties live under the literal `component` namespace, keyed by the
// component's name, and the merged block is projected onto the component's
// declared keys.
func (r *Resolver) resolveComponent(name string, parent *Descriptor, scope Scope, path []string) (*ResolvedSet, error) {
	for _, ancestor := range path {
		if ancestor == name {
			return nil, &CircularDependencyError{Path: append(append([]string{}, path...), name)}
		}
	}

	desc, err := r.registry.LoadDescriptor(name, KindComponent)
	if err != nil {
		if parent != nil {
			return nil, fmt.Errorf("component of service %q: %w", parent.Name, err)
		}
		return nil, err
	}

	// The service may tune how the component block merges; otherwise the
	// component default applies.
	policy := DefaultComponentPolicy()
	if parent != nil {
		if tuned, ok := parent.LookupOptions[name]; ok {
			policy = tuned
		}
	}
	if !r.passthrough {
		policy = MergePolicy{}
	}

	compScope := scope.With(DimComponent, name)
	block, err := r.source.Lookup(componentKey(name), compScope, policy)
	if err != nil {
		return nil, fmt.Errorf("lookup component %q: %w", name, err)
	}

	var table map[string]any
	if !block.IsAbsent() {
		m, isMap := block.Interface().(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("component %q data is %T, expected a table", name, block.Interface())
		}
		table = m
	}

	sub := newResolvedSet()
	for _, key := range desc.Keys {
		raw, exists := table[key]
		if !exists {
			sub.set(key, Absent(), name)
			continue
		}
		sub.set(key, Present(deepCopyValue(raw)), name)
	}
	return sub, nil
}

// effectivePolicy applies the capability degradation: when passthrough is
// off, the zero policy makes the data source fall back to its own default.
func (r *Resolver) effectivePolicy(desc *Descriptor, key string) MergePolicy {
	if !r.passthrough {
		return MergePolicy{}
	}
	return desc.PolicyFor(key)
}

func dimForKind(kind Kind) string {
	switch kind {
	case KindService:
		return DimService
	case KindComponent:
		return DimComponent
	default:
		return DimModule
	}
}
