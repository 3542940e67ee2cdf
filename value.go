// File: confgen/value.go
package confgen

import (
	"fmt"
	"reflect"
)

// Value is the tri-state result of a hierarchy lookup. A missing key
// resolves to an absent Value; false, zero and empty collections are all
// present values and must never collapse into absence.
type Value struct {
	v       any
	present bool
}

// Present wraps a raw value.
func Present(v any) Value {
	return Value{v: v, present: true}
}

// Absent returns the explicit "no value in any layer" marker.
func Absent() Value {
	return Value{}
}

// IsAbsent reports whether no layer contributed a value.
func (v Value) IsAbsent() bool { return !v.present }

// Interface returns the underlying value, or nil when absent. Callers that
// must distinguish a present nil from absence use IsAbsent first.
func (v Value) Interface() any { return v.v }

// Equal compares two values. Absent values are equal to each other and to
// nothing else. Present values compare by deep equality so structural
// results from different layer files compare correctly.
func (v Value) Equal(other Value) bool {
	if v.present != other.present {
		return false
	}
	if !v.present {
		return true
	}
	return reflect.DeepEqual(v.v, other.v)
}

func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}
	return fmt.Sprintf("%v", v.v)
}
