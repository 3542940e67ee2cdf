// FILE: confgen/template_test.go
package confgen

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet(t *testing.T) *ResolvedSet {
	t.Helper()
	set := newResolvedSet()
	set.set("port", Present(8080), "echo")
	set.set("log_level", Present("info"), "base")
	set.set("admin_port", Absent(), "")
	return set
}

func TestRenderBody(t *testing.T) {
	r := NewRenderer()

	t.Run("PresentKeysAsFields", func(t *testing.T) {
		out, err := r.RenderBody("app.conf.tmpl", "port={{ .port }}\nlevel={{ .log_level }}\n", testSet(t))
		require.NoError(t, err)
		assert.Equal(t, "port=8080\nlevel=info\n", string(out))
	})

	t.Run("GuardOmitsAbsentLine", func(t *testing.T) {
		body := "port={{ .port }}\n{{ if has \"admin_port\" }}admin_port={{ get \"admin_port\" }}\n{{ end }}"
		out, err := r.RenderBody("app.conf.tmpl", body, testSet(t))
		require.NoError(t, err)
		assert.Equal(t, "port=8080\n", string(out))
		assert.NotContains(t, string(out), "admin_port")
	})

	t.Run("UnguardedFieldReferenceFails", func(t *testing.T) {
		_, err := r.RenderBody("app.conf.tmpl", "admin_port={{ .admin_port }}\n", testSet(t))
		require.Error(t, err)

		var undef *UndefinedReferenceError
		require.ErrorAs(t, err, &undef)
		assert.Equal(t, "app.conf.tmpl", undef.Template)
	})

	t.Run("UnguardedGetFails", func(t *testing.T) {
		_, err := r.RenderBody("app.conf.tmpl", "admin_port={{ get \"admin_port\" }}\n", testSet(t))
		var undef *UndefinedReferenceError
		require.ErrorAs(t, err, &undef)
	})

	t.Run("UnknownKeyFails", func(t *testing.T) {
		_, err := r.RenderBody("app.conf.tmpl", "{{ .never_declared }}", testSet(t))
		var undef *UndefinedReferenceError
		require.ErrorAs(t, err, &undef)
	})

	t.Run("ParseErrorIsNotUndefinedReference", func(t *testing.T) {
		_, err := r.RenderBody("broken.tmpl", "{{ .port", testSet(t))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUndefinedReference))
	})
}

func TestRenderComponentIteration(t *testing.T) {
	set := newResolvedSet()
	set.set("port", Present(8080), "echo")

	memcached := newResolvedSet()
	memcached.set("nodes", Present("localhost:11211"), "memcached")
	memcached.set("ttl", Present(300), "memcached")
	set.addComponent("memcached", memcached)
	set.set("memcached", Present(memcached.Map()), "memcached")

	body := `{{ $c := component "memcached" }}nodes={{ $c.nodes }} ttl={{ $c.ttl }}`
	out, err := NewRenderer().RenderBody("cache.conf.tmpl", body, set)
	require.NoError(t, err)
	assert.Equal(t, "nodes=localhost:11211 ttl=300", string(out))

	t.Run("UnknownComponentFails", func(t *testing.T) {
		_, err := NewRenderer().RenderBody("cache.conf.tmpl", `{{ component "redis" }}`, set)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis")
	})
}

func TestRenderIdempotent(t *testing.T) {
	r := NewRenderer()
	set := testSet(t)
	body := "port={{ .port }}\n{{ if has \"admin_port\" }}admin={{ get \"admin_port\" }}{{ end }}"

	first, err := r.RenderBody("app.conf.tmpl", body, set)
	require.NoError(t, err)
	second, err := r.RenderBody("app.conf.tmpl", body, set)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same inputs render byte-identical output")
}

func TestRenderCustomFunc(t *testing.T) {
	r := NewRenderer()
	r.AddFunc("upper", strings.ToUpper)

	out, err := r.RenderBody("app.conf.tmpl", `{{ upper .log_level }}`, testSet(t))
	require.NoError(t, err)
	assert.Equal(t, "INFO", string(out))
}

func TestRenderFromSearchDirs(t *testing.T) {
	primary := t.TempDir()
	fallback := t.TempDir()

	writeTemplate := func(dir, name, body string) {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}

	writeTemplate(primary, "echo.conf.tmpl", "port={{ .port }}")
	writeTemplate(fallback, "echo.conf.tmpl", "should never win")
	writeTemplate(fallback, "echo.env.tmpl", "LEVEL={{ .log_level }}")

	r := NewRenderer(primary, fallback)

	t.Run("FirstDirWins", func(t *testing.T) {
		out, err := r.Render("echo.conf.tmpl", testSet(t))
		require.NoError(t, err)
		assert.Equal(t, "port=8080", string(out))
	})

	t.Run("FallsThroughToLaterDirs", func(t *testing.T) {
		out, err := r.Render("echo.env.tmpl", testSet(t))
		require.NoError(t, err)
		assert.Equal(t, "LEVEL=info", string(out))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := r.Render("ghost.conf.tmpl", testSet(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghost.conf.tmpl")
	})
}

func TestTemplatesForEntity(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.conf.tmpl"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.env.tmpl"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.conf.tmpl"), []byte("c"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "gateway"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gateway", "routes.yaml.tmpl"), []byte("d"), 0644))

	r := NewRenderer(dir)

	names, err := r.Templates("echo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"echo.conf.tmpl", "echo.env.tmpl"}, names)

	names, err = r.Templates("gateway")
	require.NoError(t, err)
	assert.Equal(t, []string{"gateway/routes.yaml.tmpl"}, names)

	names, err = r.Templates("missing")
	require.NoError(t, err)
	assert.Empty(t, names)
}
