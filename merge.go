// File: confgen/merge.go
package confgen

import "fmt"

// LookupBehavior selects how the data source combines hierarchy layers for
// one key.
type LookupBehavior string

const (
	// LookupFirstFound returns the highest-priority layer's value outright.
	LookupFirstFound LookupBehavior = "first_found"
	// LookupHashMerge unions values contributed by every applicable layer.
	LookupHashMerge LookupBehavior = "hash_merge"
)

// MergeStrategy selects how structural values are combined when
// hash-merging.
type MergeStrategy string

const (
	// StrategyPriority takes the highest-priority value outright on
	// conflicting keys.
	StrategyPriority MergeStrategy = "priority"
	// StrategyDeep unions the top level of maps; conflicting sub-values are
	// taken from the higher-priority side wholesale.
	StrategyDeep MergeStrategy = "deep"
	// StrategyDeeper recursively unions nested maps. Recommended default.
	StrategyDeeper MergeStrategy = "deeper"
)

// ArrayBehavior selects how array values combine on merge.
type ArrayBehavior string

const (
	// ArrayConcat appends the higher-priority elements after the lower.
	ArrayConcat ArrayBehavior = "concat"
	// ArrayReplace keeps only the higher-priority array.
	ArrayReplace ArrayBehavior = "replace"
)

// MergePolicy selects lookup behavior, merge strategy and array semantics
// for a single key. The zero value means "no special policy": hash-merge
// with the data source's defaults.
type MergePolicy struct {
	Lookup   LookupBehavior `mapstructure:"lookup" toml:"lookup" yaml:"lookup" json:"lookup"`
	Strategy MergeStrategy  `mapstructure:"strategy" toml:"strategy" yaml:"strategy" json:"strategy"`
	Arrays   ArrayBehavior  `mapstructure:"arrays" toml:"arrays" yaml:"arrays" json:"arrays"`
}

// DefaultComponentPolicy is the policy applied to component keys with no
// explicit lookup_options entry: hash-merge, deeper, arrays concatenated.
func DefaultComponentPolicy() MergePolicy {
	return MergePolicy{
		Lookup:   LookupHashMerge,
		Strategy: StrategyDeeper,
		Arrays:   ArrayConcat,
	}
}

// normalized fills unset policy fields with engine defaults.
func (p MergePolicy) normalized() MergePolicy {
	if p.Lookup == "" {
		p.Lookup = LookupHashMerge
	}
	if p.Strategy == "" {
		p.Strategy = StrategyDeeper
	}
	if p.Arrays == "" {
		p.Arrays = ArrayConcat
	}
	return p
}

// validate rejects unknown policy tokens from descriptor files.
func (p MergePolicy) validate() error {
	switch p.Lookup {
	case "", LookupFirstFound, LookupHashMerge:
	default:
		return fmt.Errorf("unknown lookup behavior %q", p.Lookup)
	}
	switch p.Strategy {
	case "", StrategyPriority, StrategyDeep, StrategyDeeper:
	default:
		return fmt.Errorf("unknown merge strategy %q", p.Strategy)
	}
	switch p.Arrays {
	case "", ArrayConcat, ArrayReplace:
	default:
		return fmt.Errorf("unknown array behavior %q", p.Arrays)
	}
	return nil
}

// mergeRaw combines a higher-priority raw value with a lower-priority one
// under the given policy. Scalar conflicts always prefer the higher
// priority side.
func mergeRaw(high, low any, policy MergePolicy) any {
	policy = policy.normalized()

	if policy.Strategy == StrategyPriority {
		return deepCopyValue(high)
	}

	highMap, highIsMap := high.(map[string]any)
	lowMap, lowIsMap := low.(map[string]any)
	if highIsMap && lowIsMap {
		return mergeMaps(highMap, lowMap, policy, policy.Strategy == StrategyDeeper)
	}

	highArr, highIsArr := high.([]any)
	lowArr, lowIsArr := low.([]any)
	if highIsArr && lowIsArr && policy.Arrays == ArrayConcat {
		merged := make([]any, 0, len(lowArr)+len(highArr))
		for _, e := range lowArr {
			merged = append(merged, deepCopyValue(e))
		}
		for _, e := range highArr {
			merged = append(merged, deepCopyValue(e))
		}
		return merged
	}

	// Mixed shapes and true scalars: higher priority replaces.
	return deepCopyValue(high)
}

// mergeMaps unions two maps. When recurse is false (deep strategy) only the
// top level is unioned and conflicting sub-values come from the higher
// priority side wholesale.
func mergeMaps(high, low map[string]any, policy MergePolicy, recurse bool) map[string]any {
	merged := make(map[string]any, len(low)+len(high))
	for k, v := range low {
		merged[k] = deepCopyValue(v)
	}
	for k, hv := range high {
		lv, conflict := merged[k]
		if !conflict {
			merged[k] = deepCopyValue(hv)
			continue
		}
		if recurse {
			merged[k] = mergeRaw(hv, lv, policy)
		} else {
			merged[k] = deepCopyValue(hv)
		}
	}
	return merged
}

// mergeValues combines two tri-state lookup results. Absence on either side
// yields the other side untouched; a key absent in every layer stays
// absent.
func mergeValues(high, low Value, policy MergePolicy) Value {
	if high.IsAbsent() {
		return low
	}
	if low.IsAbsent() {
		return high
	}
	return Present(mergeRaw(high.Interface(), low.Interface(), policy))
}
