// File: confgen/builder.go
package confgen

import (
	"fmt"
	"log/slog"
)

// ValidatorFunc validates a fully wired Generator before any resolution
// runs. It should return an error if the configuration is unusable.
type ValidatorFunc func(g *Generator) error

// Builder provides a fluent interface for wiring a Generator.
type Builder struct {
	registry     Registry
	source       DataSource
	templateDirs []string

	scope Scope
	env   string
	node  string
	role  string

	outputDir string
	dryRun    bool
	validate  bool
	clean     bool
	banner    bool

	logger     *slog.Logger
	validators []ValidatorFunc
	err        error
}

// NewBuilder creates a new generator builder.
func NewBuilder() *Builder {
	return &Builder{
		scope:      NewScope(),
		banner:     true,
		logger:     slog.Default(),
		validators: make([]ValidatorFunc, 0),
	}
}

// WithRegistry sets the entity descriptor source.
func (b *Builder) WithRegistry(r Registry) *Builder {
	b.registry = r
	return b
}

// WithDataSource sets the hierarchical data source.
func (b *Builder) WithDataSource(s DataSource) *Builder {
	b.source = s
	return b
}

// WithTemplateDirs sets the template search path.
func (b *Builder) WithTemplateDirs(dirs ...string) *Builder {
	b.templateDirs = dirs
	return b
}

// WithScope sets extra scope dimensions beyond env/node/role.
func (b *Builder) WithScope(s Scope) *Builder {
	b.scope = s.Clone()
	return b
}

// WithEnv selects a per-environment hierarchy layer. Mutually exclusive
// with WithNodeRole.
func (b *Builder) WithEnv(env string) *Builder {
	b.env = env
	return b
}

// WithNodeRole selects per-node and per-role hierarchy layers. Node
// requires role and vice versa; mutually exclusive with WithEnv.
func (b *Builder) WithNodeRole(node, role string) *Builder {
	b.node = node
	b.role = role
	return b
}

// WithOutputDir overrides all declared target directories.
func (b *Builder) WithOutputDir(dir string) *Builder {
	b.outputDir = dir
	return b
}

// WithDryRun reports would-be writes instead of performing them.
func (b *Builder) WithDryRun(on bool) *Builder {
	b.dryRun = on
	return b
}

// WithValidateMode compares generated output against existing files
// instead of writing.
func (b *Builder) WithValidateMode(on bool) *Builder {
	b.validate = on
	return b
}

// WithClean clears target directories before writing.
func (b *Builder) WithClean(on bool) *Builder {
	b.clean = on
	return b
}

// WithBanner toggles the autogenerated-file marker. On by default.
func (b *Builder) WithBanner(on bool) *Builder {
	b.banner = on
	return b
}

// WithLogger sets the logger used across the pipeline.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithValidator adds a validation function that runs at the end of the
// build. Multiple validators run in the order they were added.
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build wires and validates the Generator.
func (b *Builder) Build() (*Generator, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.registry == nil {
		return nil, fmt.Errorf("no descriptor registry configured")
	}
	if b.source == nil {
		return nil, fmt.Errorf("no data source configured")
	}
	if b.env != "" && (b.node != "" || b.role != "") {
		return nil, fmt.Errorf("env and node/role are mutually exclusive")
	}
	if (b.node == "") != (b.role == "") {
		return nil, fmt.Errorf("node and role must be set together")
	}
	if b.dryRun && b.validate {
		return nil, fmt.Errorf("dry-run and validate are mutually exclusive")
	}

	scope := b.scope.Clone()
	if b.env != "" {
		scope = scope.With(DimEnv, b.env)
	}
	if b.node != "" {
		scope = scope.With(DimNode, b.node).With(DimRole, b.role)
	}

	g := &Generator{
		registry: b.registry,
		resolver: NewResolver(b.registry, b.source, WithResolverLogger(b.logger)),
		renderer: NewRenderer(b.templateDirs...),
		writer: NewWriter(
			WithOutputDir(b.outputDir),
			WithDryRun(b.dryRun),
			WithValidate(b.validate),
			WithBanner(b.banner),
			WithWriterLogger(b.logger),
		),
		scope:  scope,
		clean:  b.clean,
		logger: b.logger,
	}

	for _, validator := range b.validators {
		if err := validator(g); err != nil {
			return nil, fmt.Errorf("generator validation failed: %w", err)
		}
	}

	return g, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Generator {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("generator build failed: %v", err))
	}
	return g
}
