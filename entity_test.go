// FILE: confgen/entity_test.go
package confgen

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		d := &Descriptor{Name: "echo-server", Kind: KindService, Keys: []string{"port"}}
		assert.NoError(t, d.Validate())
	})

	t.Run("EmptyKeysRejected", func(t *testing.T) {
		d := &Descriptor{Name: "hollow", Kind: KindSubModule}
		err := d.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyDescriptor)

		var emptyErr *EmptyDescriptorError
		require.ErrorAs(t, err, &emptyErr)
		assert.Equal(t, "hollow", emptyErr.Name)
	})

	t.Run("ComponentWithDependenciesRejected", func(t *testing.T) {
		d := &Descriptor{Name: "memcached", Kind: KindComponent, Keys: []string{"nodes"}, Dependencies: []string{"base"}}
		assert.Error(t, d.Validate())
	})

	t.Run("ModuleWithComponentsRejected", func(t *testing.T) {
		d := &Descriptor{Name: "base", Kind: KindSubModule, Keys: []string{"k"}, Components: []string{"memcached"}}
		assert.Error(t, d.Validate())
	})

	t.Run("OptionalMustBeDeclaredDependency", func(t *testing.T) {
		d := &Descriptor{Name: "svc", Kind: KindService, Keys: []string{"k"}, Optional: []string{"ghost"}}
		assert.Error(t, d.Validate())
	})

	t.Run("BadPolicyRejected", func(t *testing.T) {
		d := &Descriptor{
			Name: "svc", Kind: KindService, Keys: []string{"k"},
			LookupOptions: map[string]MergePolicy{"k": {Strategy: "deepest"}},
		}
		assert.Error(t, d.Validate())
	})
}

func TestParseKind(t *testing.T) {
	for token, want := range map[string]Kind{
		"service":    KindService,
		"module":     KindSubModule,
		"submodule":  KindSubModule,
		"sub-module": KindSubModule,
		"component":  KindComponent,
	} {
		got, err := ParseKind(token)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("daemon")
	assert.Error(t, err)
}

func TestStaticRegistry(t *testing.T) {
	reg := NewStaticRegistry()
	require.NoError(t, reg.Register(&Descriptor{Name: "base", Kind: KindSubModule, Keys: []string{"k"}}))

	t.Run("Load", func(t *testing.T) {
		d, err := reg.LoadDescriptor("base", KindSubModule)
		require.NoError(t, err)
		assert.Equal(t, "base", d.Name)
	})

	t.Run("SameNameDifferentKind", func(t *testing.T) {
		require.NoError(t, reg.Register(&Descriptor{Name: "base", Kind: KindComponent, Keys: []string{"k"}}))
		d, err := reg.LoadDescriptor("base", KindComponent)
		require.NoError(t, err)
		assert.Equal(t, KindComponent, d.Kind)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		err := reg.Register(&Descriptor{Name: "base", Kind: KindSubModule, Keys: []string{"k"}})
		assert.Error(t, err)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := reg.LoadDescriptor("ghost", KindService)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEntityNotFound)

		var nf *EntityNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "ghost", nf.Name)
		assert.Equal(t, KindService, nf.Kind)
	})
}

func TestDirRegistry(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	write("service/echo-server.yaml", `
keys: [port, motd]
dependencies: [base]
components: [memcached]
lookup_options:
  port:
    lookup: first_found
targets:
  - target_dir: conf
    files:
      - {template: echo-server.yaml.tmpl, name: echo-server.yaml}
`)
	write("module/base.toml", `
keys = ["log_level"]
`)
	write("component/memcached.json", `{"keys": ["nodes", "single_client_enabled"]}`)

	reg := NewDirRegistry(dir)

	t.Run("YAMLService", func(t *testing.T) {
		d, err := reg.LoadDescriptor("echo-server", KindService)
		require.NoError(t, err)
		assert.Equal(t, []string{"port", "motd"}, d.Keys)
		assert.Equal(t, []string{"base"}, d.Dependencies)
		assert.Equal(t, []string{"memcached"}, d.Components)
		assert.Equal(t, LookupFirstFound, d.LookupOptions["port"].Lookup)
		require.Len(t, d.Targets, 1)
		assert.Equal(t, "conf", d.Targets[0].TargetDir)
		assert.Equal(t, "echo-server.yaml", d.Targets[0].Files[0].Name)
	})

	t.Run("TOMLModule", func(t *testing.T) {
		d, err := reg.LoadDescriptor("base", KindSubModule)
		require.NoError(t, err)
		assert.Equal(t, []string{"log_level"}, d.Keys)
	})

	t.Run("JSONComponent", func(t *testing.T) {
		d, err := reg.LoadDescriptor("memcached", KindComponent)
		require.NoError(t, err)
		assert.Equal(t, []string{"nodes", "single_client_enabled"}, d.Keys)
	})

	t.Run("MissingIsEntityNotFound", func(t *testing.T) {
		_, err := reg.LoadDescriptor("ghost", KindService)
		assert.True(t, errors.Is(err, ErrEntityNotFound))
	})

	t.Run("KindMismatchRejected", func(t *testing.T) {
		write("service/liar.yaml", "kind: component\nkeys: [k]\n")
		_, err := reg.LoadDescriptor("liar", KindService)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "declares kind")
	})

	t.Run("NameMismatchRejected", func(t *testing.T) {
		write("service/alias.yaml", "name: someone-else\nkeys: [k]\n")
		_, err := reg.LoadDescriptor("alias", KindService)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "declares name")
	})

	t.Run("EmptyDescriptorRejected", func(t *testing.T) {
		write("service/hollow.yaml", "keys: []\n")
		_, err := reg.LoadDescriptor("hollow", KindService)
		assert.ErrorIs(t, err, ErrEmptyDescriptor)
	})
}

func TestPolicyFor(t *testing.T) {
	svc := &Descriptor{
		Name: "svc", Kind: KindService, Keys: []string{"a", "b"},
		LookupOptions: map[string]MergePolicy{"a": {Lookup: LookupFirstFound}},
	}
	assert.Equal(t, LookupFirstFound, svc.PolicyFor("a").Lookup)
	assert.Equal(t, MergePolicy{}, svc.PolicyFor("b"))

	comp := &Descriptor{Name: "memcached", Kind: KindComponent, Keys: []string{"nodes"}}
	assert.Equal(t, DefaultComponentPolicy(), comp.PolicyFor("nodes"))
}
