// File: confgen/entity.go
package confgen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Kind identifies the category of a configuration-bearing entity.
type Kind string

const (
	KindService   Kind = "service"
	KindSubModule Kind = "module"
	KindComponent Kind = "component"
)

func (k Kind) String() string { return string(k) }

// ParseKind converts a descriptor file token into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "service":
		return KindService, nil
	case "module", "submodule", "sub-module":
		return KindSubModule, nil
	case "component":
		return KindComponent, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

// TargetFile associates one template with its output file name.
type TargetFile struct {
	Template string `mapstructure:"template" toml:"template" yaml:"template" json:"template"`
	Name     string `mapstructure:"name" toml:"name" yaml:"name" json:"name"`
}

// TargetSpec maps a set of templates to a target directory. An entity with
// no explicit targets renders every template found for it into the default
// resources path.
type TargetSpec struct {
	TargetDir string       `mapstructure:"target_dir" toml:"target_dir" yaml:"target_dir" json:"target_dir"`
	Files     []TargetFile `mapstructure:"files" toml:"files" yaml:"files" json:"files"`
}

// Descriptor is the static declaration of an entity: its recognized
// configuration keys and declared dependencies. Descriptors are read-only
// for the duration of one resolution run.
type Descriptor struct {
	Name string
	Kind Kind

	// Keys is the ordered set of recognized configuration keys.
	Keys []string

	// Dependencies is the ordered list of sub-module names (services and
	// sub-modules only).
	Dependencies []string

	// Optional marks the subset of Dependencies whose missing descriptor is
	// a skip-and-warn, not an error.
	Optional []string

	// Components is the ordered list of component names (services only).
	Components []string

	// LookupOptions overrides the merge policy for specific keys.
	LookupOptions map[string]MergePolicy

	// Targets declares output files per template. Empty means default
	// layout.
	Targets []TargetSpec
}

// IsOptional reports whether a dependency name was declared optional.
func (d *Descriptor) IsOptional(dep string) bool {
	for _, o := range d.Optional {
		if o == dep {
			return true
		}
	}
	return false
}

// PolicyFor resolves the effective merge policy for one of the entity's
// keys: an explicit lookup_options entry wins, then the component default
// for components, then no special policy.
func (d *Descriptor) PolicyFor(key string) MergePolicy {
	if p, ok := d.LookupOptions[key]; ok {
		return p
	}
	if d.Kind == KindComponent {
		return DefaultComponentPolicy()
	}
	return MergePolicy{}
}

// Validate checks a descriptor for authoring errors. An entity with zero
// recognized keys has no configuration surface and is rejected.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	if !isValidKeySegment(d.Name) {
		return fmt.Errorf("invalid entity name %q", d.Name)
	}
	switch d.Kind {
	case KindService, KindSubModule, KindComponent:
	default:
		return fmt.Errorf("descriptor %q: unknown kind %q", d.Name, d.Kind)
	}
	if len(d.Keys) == 0 {
		return &EmptyDescriptorError{Name: d.Name, Kind: d.Kind}
	}
	for _, k := range d.Keys {
		if !isValidKeySegment(k) {
			return fmt.Errorf("descriptor %q: invalid key %q", d.Name, k)
		}
	}
	if d.Kind == KindComponent && len(d.Dependencies) > 0 {
		return fmt.Errorf("component %q must not declare dependencies", d.Name)
	}
	if d.Kind != KindService && len(d.Components) > 0 {
		return fmt.Errorf("%s %q must not declare components", d.Kind, d.Name)
	}
	for _, o := range d.Optional {
		if !containsString(d.Dependencies, o) {
			return fmt.Errorf("descriptor %q: optional entry %q is not a declared dependency", d.Name, o)
		}
	}
	for key, policy := range d.LookupOptions {
		if err := policy.validate(); err != nil {
			return fmt.Errorf("descriptor %q: lookup_options for %q: %w", d.Name, key, err)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// Registry is the entity descriptor source: a per-entity declaration
// readable by name and kind.
type Registry interface {
	LoadDescriptor(name string, kind Kind) (*Descriptor, error)
}

// StaticRegistry holds descriptors registered at build time, keyed by
// (name, kind).
type StaticRegistry struct {
	descriptors map[string]*Descriptor
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{descriptors: make(map[string]*Descriptor)}
}

// Register validates and adds a descriptor. Duplicate (name, kind) pairs
// are rejected.
func (r *StaticRegistry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	key := registryKey(d.Name, d.Kind)
	if _, exists := r.descriptors[key]; exists {
		return fmt.Errorf("descriptor for %s %q already registered", d.Kind, d.Name)
	}
	r.descriptors[key] = d
	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// build-time tables.
func (r *StaticRegistry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(fmt.Sprintf("descriptor registration failed: %v", err))
	}
}

// LoadDescriptor implements Registry.
func (r *StaticRegistry) LoadDescriptor(name string, kind Kind) (*Descriptor, error) {
	d, ok := r.descriptors[registryKey(name, kind)]
	if !ok {
		return nil, &EntityNotFoundError{Name: name, Kind: kind}
	}
	return d, nil
}

func registryKey(name string, kind Kind) string {
	return string(kind) + "/" + name
}

// DirRegistry loads descriptors on demand from
// <dir>/<kind>/<name>.{toml,yaml,yml,json}. Descriptors are loaded fresh
// every run; there is no cross-invocation cache.
type DirRegistry struct {
	dir string
}

// NewDirRegistry creates a registry rooted at dir.
func NewDirRegistry(dir string) *DirRegistry {
	return &DirRegistry{dir: dir}
}

var descriptorExtensions = []string{".toml", ".yaml", ".yml", ".json"}

// LoadDescriptor implements Registry.
func (r *DirRegistry) LoadDescriptor(name string, kind Kind) (*Descriptor, error) {
	if !isValidKeySegment(name) {
		return nil, fmt.Errorf("invalid entity name %q", name)
	}

	for _, ext := range descriptorExtensions {
		path := filepath.Join(r.dir, string(kind), name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read descriptor '%s': %w", path, err)
		}
		return decodeDescriptor(path, data, name, kind)
	}

	return nil, &EntityNotFoundError{Name: name, Kind: kind}
}

// descriptorFile is the on-disk shape of a descriptor.
type descriptorFile struct {
	Name          string                 `mapstructure:"name"`
	Kind          string                 `mapstructure:"kind"`
	Keys          []string               `mapstructure:"keys"`
	Dependencies  []string               `mapstructure:"dependencies"`
	Optional      []string               `mapstructure:"optional"`
	Components    []string               `mapstructure:"components"`
	LookupOptions map[string]MergePolicy `mapstructure:"lookup_options"`
	Targets       []TargetSpec           `mapstructure:"targets"`
}

func decodeDescriptor(path string, data []byte, name string, kind Kind) (*Descriptor, error) {
	doc, err := parseDocument(path, data)
	if err != nil {
		return nil, err
	}

	var raw descriptorFile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("decoder creation failed: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor '%s': %w", path, err)
	}

	d := &Descriptor{
		Name:          name,
		Kind:          kind,
		Keys:          raw.Keys,
		Dependencies:  raw.Dependencies,
		Optional:      raw.Optional,
		Components:    raw.Components,
		LookupOptions: raw.LookupOptions,
		Targets:       raw.Targets,
	}

	// The file may restate name and kind; if it does, they must agree with
	// the lookup identity.
	if raw.Name != "" && raw.Name != name {
		return nil, fmt.Errorf("descriptor '%s' declares name %q, expected %q", path, raw.Name, name)
	}
	if raw.Kind != "" {
		declared, err := ParseKind(raw.Kind)
		if err != nil {
			return nil, fmt.Errorf("descriptor '%s': %w", path, err)
		}
		if declared != kind {
			return nil, fmt.Errorf("descriptor '%s' declares kind %q, expected %q", path, declared, kind)
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Names returns the registered (kind, name) pairs in deterministic order.
// Useful for diagnostics and tests.
func (r *StaticRegistry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for key := range r.descriptors {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}
