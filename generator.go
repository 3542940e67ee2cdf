// File: confgen/generator.go
package confgen

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultTargetDir is where templates render when a descriptor declares no
// explicit target mapping.
const DefaultTargetDir = "resources"

// Request selects the root entities for one invocation. Services and
// Components are mutually exclusive.
type Request struct {
	Services   []string
	Components []string
}

// Generator wires the resolver, renderer and writer together: it is the
// single-pass, offline pipeline from entity selection to output files.
type Generator struct {
	registry Registry
	resolver *Resolver
	renderer *Renderer
	writer   *Writer
	scope    Scope
	clean    bool
	logger   *slog.Logger
}

// Run resolves and renders every requested root. All artifacts for one root
// are buffered and handed to the writer only after the whole root resolved
// and rendered; a fatal error aborts that root with zero writes. Writes for
// roots completed earlier in the same invocation are not rolled back.
func (g *Generator) Run(req Request) ([]Report, error) {
	if len(req.Services) > 0 && len(req.Components) > 0 {
		return nil, fmt.Errorf("services and components are mutually exclusive")
	}
	if len(req.Services) == 0 && len(req.Components) == 0 {
		return nil, fmt.Errorf("no services or components requested")
	}

	var reports []Report
	run := func(name string, kind Kind) error {
		out, err := g.generateRoot(name, kind)
		if err != nil {
			return fmt.Errorf("%s %q: %w", kind, name, err)
		}
		reports = append(reports, out...)
		return nil
	}

	for _, svc := range req.Services {
		if err := run(svc, KindService); err != nil {
			return reports, err
		}
	}
	for _, comp := range req.Components {
		if err := run(comp, KindComponent); err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// generateRoot resolves one root entity and renders its artifacts plus one
// artifact set per component of a service.
func (g *Generator) generateRoot(name string, kind Kind) ([]Report, error) {
	set, err := g.resolver.Resolve(name, kind, g.scope)
	if err != nil {
		return nil, err
	}

	requests, err := g.renderEntity(name, kind, set)
	if err != nil {
		return nil, err
	}

	for _, comp := range set.ComponentNames() {
		sub, _ := set.Component(comp)
		compRequests, err := g.renderEntity(comp, KindComponent, sub)
		if err != nil {
			return nil, err
		}
		requests = append(requests, compRequests...)
	}

	g.logger.Info("generated configuration", "kind", kind.String(), "entity", name,
		"keys", len(set.Keys()), "files", len(requests))
	return g.writer.Write(requests)
}

// renderEntity renders every declared target of an entity, or every
// template found for it when the descriptor declares none.
func (g *Generator) renderEntity(name string, kind Kind, set *ResolvedSet) ([]WriteRequest, error) {
	desc, err := g.registry.LoadDescriptor(name, kind)
	if err != nil {
		return nil, err
	}

	var requests []WriteRequest
	if len(desc.Targets) == 0 {
		templates, err := g.renderer.Templates(name)
		if err != nil {
			return nil, err
		}
		for _, tmpl := range templates {
			content, err := g.renderer.Render(tmpl, set)
			if err != nil {
				return nil, err
			}
			requests = append(requests, WriteRequest{
				Name:    outputName(tmpl),
				Dir:     DefaultTargetDir,
				Content: content,
				Clean:   g.clean,
			})
		}
		return requests, nil
	}

	for _, target := range desc.Targets {
		dir := target.TargetDir
		if dir == "" {
			dir = DefaultTargetDir
		}
		for _, file := range target.Files {
			content, err := g.renderer.Render(file.Template, set)
			if err != nil {
				return nil, err
			}
			outName := file.Name
			if outName == "" {
				outName = outputName(file.Template)
			}
			requests = append(requests, WriteRequest{
				Name:    outName,
				Dir:     dir,
				Content: content,
				Clean:   g.clean,
			})
		}
	}
	return requests, nil
}

// outputName strips the template suffix and any entity directory prefix
// from a template path to produce the default output file name.
func outputName(tmpl string) string {
	name := tmpl
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".tmpl")
	return name
}
