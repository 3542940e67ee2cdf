// File: confgen/doc.go

// Package confgen resolves per-deployment configuration for named entities
// (services, sub-modules, components) from a layered data hierarchy and
// renders the result into output text files via templates.
//
// Resolution walks the entity's declared dependency graph depth-first in
// declaration order, rejecting cycles, so deeper dependencies resolve first
// and closer entities override them. Each declared key is looked up against
// the hierarchical data source by fully-qualified key
// (`<namespace>::<property>`) under a per-key merge policy; hierarchy
// layers (node, role, environment, common defaults) union under the
// configured strategy, with higher-priority layers winning scalar
// conflicts. A key with no value in any layer resolves to an explicit
// absent marker, distinct from false, zero or empty, so templates can omit
// absent properties.
//
// Quick Start:
//
//	gen, err := confgen.NewBuilder().
//	    WithRegistry(confgen.NewDirRegistry("descriptors")).
//	    WithDataSource(confgen.NewLayeredSource("data", confgen.DefaultHierarchy())).
//	    WithTemplateDirs("templates").
//	    WithEnv("test").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reports, err := gen.Run(confgen.Request{Services: []string{"echo-server"}})
//
// The tool is a static, offline, single-pass generator: one invocation
// resolves the requested roots sequentially with no shared mutable state
// and no runtime reconfiguration.
package confgen
