// File: confgen/template.go
package confgen

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Renderer loads template bodies from search directories and renders
// resolved configuration into output text. Templates are cached per run.
//
// Inside a template, `has "key"` guards on absence, `get "key"` fetches a
// present value, and `component "name"` returns a component's sub-mapping
// for iteration. Present keys are also addressable directly as fields of
// the data (e.g. {{ .port }}); an unguarded reference to an absent key is
// an authoring error at render time, not a silent blank.
type Renderer struct {
	dirs    []string
	cache   map[string]*template.Template
	funcMap template.FuncMap
}

// NewRenderer creates a renderer searching the given directories in order.
func NewRenderer(dirs ...string) *Renderer {
	return &Renderer{
		dirs:    dirs,
		cache:   make(map[string]*template.Template),
		funcMap: make(template.FuncMap),
	}
}

// AddSearchDir prepends a directory to the template search path.
func (r *Renderer) AddSearchDir(dir string) {
	r.dirs = append([]string{dir}, r.dirs...)
}

// AddFunc adds a custom template function available to all templates.
func (r *Renderer) AddFunc(name string, fn any) {
	r.funcMap[name] = fn
}

// Render loads a named template and renders the resolved set through it.
func (r *Renderer) Render(name string, set *ResolvedSet) ([]byte, error) {
	tmpl, err := r.getTemplate(name)
	if err != nil {
		return nil, err
	}
	return r.execute(name, tmpl, set)
}

// RenderBody renders an in-memory template body. The name is used for
// diagnostics only.
func (r *Renderer) RenderBody(name, body string, set *ResolvedSet) ([]byte, error) {
	tmpl, err := r.parse(name, body)
	if err != nil {
		return nil, err
	}
	return r.execute(name, tmpl, set)
}

// Templates lists the template files available for an entity, the default
// target set when a descriptor declares no explicit mapping. A template
// belongs to an entity when its file name starts with `<entity>.` or lives
// under a directory named after the entity.
func (r *Renderer) Templates(entity string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read template dir '%s': %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			switch {
			case entry.IsDir() && name == entity:
				subEntries, err := os.ReadDir(filepath.Join(dir, name))
				if err != nil {
					return nil, fmt.Errorf("failed to read template dir '%s': %w", filepath.Join(dir, name), err)
				}
				for _, sub := range subEntries {
					if sub.IsDir() {
						continue
					}
					rel := filepath.ToSlash(filepath.Join(name, sub.Name()))
					if !seen[rel] {
						seen[rel] = true
						names = append(names, rel)
					}
				}
			case !entry.IsDir() && strings.HasPrefix(name, entity+"."):
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	return names, nil
}

func (r *Renderer) getTemplate(name string) (*template.Template, error) {
	if tmpl, cached := r.cache[name]; cached {
		return tmpl, nil
	}

	for _, dir := range r.dirs {
		path := filepath.Join(dir, filepath.FromSlash(name))
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read template '%s': %w", path, err)
		}
		tmpl, err := r.parse(name, string(data))
		if err != nil {
			return nil, err
		}
		r.cache[name] = tmpl
		return tmpl, nil
	}

	return nil, fmt.Errorf("template %q not found in %v", name, r.dirs)
}

func (r *Renderer) parse(name, body string) (*template.Template, error) {
	funcs := template.FuncMap{
		// Placeholders so names resolve at parse time; execute rebinds them
		// to the resolved set.
		"has":       func(string) bool { return false },
		"get":       func(string) (any, error) { return nil, nil },
		"component": func(string) (map[string]any, error) { return nil, nil },
	}
	for k, v := range r.funcMap {
		funcs[k] = v
	}

	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
	}
	return tmpl, nil
}

func (r *Renderer) execute(name string, tmpl *template.Template, set *ResolvedSet) ([]byte, error) {
	bound, err := tmpl.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone template %q: %w", name, err)
	}
	bound.Option("missingkey=error")
	bound.Funcs(template.FuncMap{
		"has": func(key string) bool {
			v, ok := set.Get(key)
			return ok && !v.IsAbsent()
		},
		"get": func(key string) (any, error) {
			v, ok := set.Get(key)
			if !ok || v.IsAbsent() {
				return nil, fmt.Errorf("key %q is absent", key)
			}
			return v.Interface(), nil
		},
		"component": func(compName string) (map[string]any, error) {
			sub, ok := set.Component(compName)
			if !ok {
				return nil, fmt.Errorf("no component %q in resolved configuration", compName)
			}
			return sub.Map(), nil
		},
	})

	var buf bytes.Buffer
	if err := bound.Execute(&buf, set.Map()); err != nil {
		if isMissingKey(err) {
			return nil, &UndefinedReferenceError{Template: name, Detail: err.Error()}
		}
		return nil, fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// isMissingKey recognizes text/template's missingkey=error failures and the
// guard helpers' own absence errors.
func isMissingKey(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no entry for key") || strings.Contains(msg, "is absent")
}
