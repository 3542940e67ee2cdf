// File: confgen/errors.go
package confgen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntityNotFound indicates a requested or dependency-declared entity
	// has no descriptor in the registry.
	ErrEntityNotFound = errors.New("entity descriptor not found")

	// ErrEmptyDescriptor indicates an entity declares zero configuration keys.
	ErrEmptyDescriptor = errors.New("entity declares no configuration keys")

	// ErrUndefinedReference indicates a template references an absent key
	// without an absence guard.
	ErrUndefinedReference = errors.New("template references undefined key")

	// ErrValidationMismatch indicates freshly rendered output disagrees with
	// the pre-existing file on disk (validate mode only).
	ErrValidationMismatch = errors.New("generated output does not match existing file")

	// ErrAmbiguousOverride indicates two independent dependency branches
	// contributed different values for the same key with no explicit
	// override at the declaring ancestor.
	ErrAmbiguousOverride = errors.New("ambiguous override between dependency branches")
)

// EntityNotFoundError reports a missing descriptor with its lookup identity.
type EntityNotFoundError struct {
	Name string
	Kind Kind
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("no descriptor for %s %q", e.Kind, e.Name)
}

func (e *EntityNotFoundError) Unwrap() error { return ErrEntityNotFound }

// EmptyDescriptorError signals a broken declaration, not an empty-but-valid
// entity.
type EmptyDescriptorError struct {
	Name string
	Kind Kind
}

func (e *EmptyDescriptorError) Error() string {
	return fmt.Sprintf("%s %q declares no configuration keys", e.Kind, e.Name)
}

func (e *EmptyDescriptorError) Unwrap() error { return ErrEmptyDescriptor }

// CircularDependencyError reports a dependency name reappearing on the
// current resolution path. Path holds the full cycle, root first, with the
// repeated entity closing it.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Path, " -> "))
}

// UndefinedReferenceError reports an unguarded template reference to an
// absent key.
type UndefinedReferenceError struct {
	Template string
	Detail   string
}

func (e *UndefinedReferenceError) Error() string {
	return fmt.Sprintf("template %q: %s", e.Template, e.Detail)
}

func (e *UndefinedReferenceError) Unwrap() error { return ErrUndefinedReference }

// AmbiguousOverrideError reports a key contributed with conflicting values
// by two independent dependency branches of the same ancestor. The ancestor
// must declare the key itself to break the tie.
type AmbiguousOverrideError struct {
	Key      string
	Ancestor string
	Branches [2]string
}

func (e *AmbiguousOverrideError) Error() string {
	return fmt.Sprintf("key %q of %q is contributed with conflicting values by %q and %q; declare %q on %q to override explicitly",
		e.Key, e.Ancestor, e.Branches[0], e.Branches[1], e.Key, e.Ancestor)
}

func (e *AmbiguousOverrideError) Unwrap() error { return ErrAmbiguousOverride }

// ValidationMismatchError carries the go-cmp diff between the freshly
// rendered content and the file already on disk.
type ValidationMismatchError struct {
	Path string
	Diff string
}

func (e *ValidationMismatchError) Error() string {
	return fmt.Sprintf("validation failed for %q:\n%s", e.Path, e.Diff)
}

func (e *ValidationMismatchError) Unwrap() error { return ErrValidationMismatch }
