// FILE: confgen/hierarchy_test.go
package confgen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestSource(t *testing.T, opts ...LayeredSourceOption) (*LayeredSource, string) {
	t.Helper()
	dir := t.TempDir()
	return NewLayeredSource(dir, DefaultHierarchy(), opts...), dir
}

func TestLayeredLookup(t *testing.T) {
	source, dir := newTestSource(t)

	writeDataFile(t, dir, "common.yaml", `
echo-server:
  port: 7070
  motd: "hello"
`)
	writeDataFile(t, dir, "env/test.yaml", `
echo-server:
  port: 8080
`)

	t.Run("EnvironmentOverridesCommon", func(t *testing.T) {
		v, err := source.Lookup("echo-server::port", NewScope(DimEnv, "test"), MergePolicy{})
		require.NoError(t, err)
		require.False(t, v.IsAbsent())
		assert.Equal(t, 8080, v.Interface())
	})

	t.Run("CommonSurvivesWithoutOverride", func(t *testing.T) {
		v, err := source.Lookup("echo-server::motd", NewScope(DimEnv, "test"), MergePolicy{})
		require.NoError(t, err)
		assert.Equal(t, "hello", v.Interface())
	})

	t.Run("UnsetDimensionSkipsLayer", func(t *testing.T) {
		// No env in scope: the env layer pattern cannot expand, common wins.
		v, err := source.Lookup("echo-server::port", NewScope(), MergePolicy{})
		require.NoError(t, err)
		assert.Equal(t, 7070, v.Interface())
	})

	t.Run("NoValueInAnyLayerIsAbsent", func(t *testing.T) {
		v, err := source.Lookup("echo-server::timeout", NewScope(DimEnv, "test"), MergePolicy{})
		require.NoError(t, err)
		assert.True(t, v.IsAbsent())
	})

	t.Run("EnvironmentWithNoDataFileIsAbsentForUncommonKey", func(t *testing.T) {
		v, err := source.Lookup("echo-server::port", NewScope(DimEnv, "localhost"), MergePolicy{})
		require.NoError(t, err)
		assert.Equal(t, 7070, v.Interface(), "falls through to common")
	})
}

func TestLookupBehaviors(t *testing.T) {
	source, dir := newTestSource(t)

	writeDataFile(t, dir, "common.yaml", `
svc:
  limits:
    cpu: 1
    mem: 512
`)
	writeDataFile(t, dir, "env/prod.yaml", `
svc:
  limits:
    cpu: 4
`)
	scope := NewScope(DimEnv, "prod")

	t.Run("FirstFoundTakesHighestLayerOutright", func(t *testing.T) {
		v, err := source.Lookup("svc::limits", scope, MergePolicy{Lookup: LookupFirstFound})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"cpu": 4}, v.Interface())
	})

	t.Run("HashMergeDeeperUnionsLayers", func(t *testing.T) {
		v, err := source.Lookup("svc::limits", scope, MergePolicy{Lookup: LookupHashMerge, Strategy: StrategyDeeper})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"cpu": 4, "mem": 512}, v.Interface())
	})

	t.Run("HashMergePriorityTakesHighestOnConflict", func(t *testing.T) {
		v, err := source.Lookup("svc::limits", scope, MergePolicy{Lookup: LookupHashMerge, Strategy: StrategyPriority})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"cpu": 4}, v.Interface())
	})
}

func TestComponentBlockMerge(t *testing.T) {
	source, dir := newTestSource(t)

	writeDataFile(t, dir, "common.yaml", `
component:
  memcached:
    nodes: "localhost:11211"
    single_client_enabled: true
`)
	writeDataFile(t, dir, "env/prod.yaml", `
component:
  memcached:
    single_client_enabled: false
`)

	v, err := source.Lookup("component::memcached", NewScope(DimEnv, "prod"), DefaultComponentPolicy())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"nodes":                 "localhost:11211",
		"single_client_enabled": false,
	}, v.Interface())
}

func TestNodeRoleHierarchy(t *testing.T) {
	source, dir := newTestSource(t)

	writeDataFile(t, dir, "common.toml", `
[svc]
workers = 2
`)
	writeDataFile(t, dir, "role/frontend.toml", `
[svc]
workers = 4
`)
	writeDataFile(t, dir, "node/web01.toml", `
[svc]
workers = 8
`)

	t.Run("NodeBeatsRole", func(t *testing.T) {
		v, err := source.Lookup("svc::workers", NewScope(DimNode, "web01", DimRole, "frontend"), MergePolicy{})
		require.NoError(t, err)
		assert.Equal(t, int64(8), v.Interface())
	})

	t.Run("RoleBeatsCommon", func(t *testing.T) {
		v, err := source.Lookup("svc::workers", NewScope(DimNode, "web02", DimRole, "frontend"), MergePolicy{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), v.Interface())
	})
}

func TestExplain(t *testing.T) {
	source, dir := newTestSource(t)

	writeDataFile(t, dir, "common.yaml", "svc:\n  port: 1\n")
	writeDataFile(t, dir, "env/test.yaml", "svc:\n  port: 2\n")

	contributions, err := source.Explain("svc::port", NewScope(DimEnv, "test"))
	require.NoError(t, err)
	require.Len(t, contributions, 2)
	assert.Equal(t, "env/test", contributions[0].Layer)
	assert.Equal(t, "common", contributions[1].Layer)
}

func TestMalformedLayerFile(t *testing.T) {
	source, dir := newTestSource(t)
	writeDataFile(t, dir, "common.yaml", "svc: not-a-table\n")

	_, err := source.Lookup("svc::port", NewScope(), MergePolicy{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a table")
}

func TestExpandPattern(t *testing.T) {
	scope := NewScope(DimEnv, "test")

	name, ok := expandPattern("env/%{env}", scope)
	assert.True(t, ok)
	assert.Equal(t, "env/test", name)

	_, ok = expandPattern("node/%{node}", scope)
	assert.False(t, ok)

	name, ok = expandPattern("common", scope)
	assert.True(t, ok)
	assert.Equal(t, "common", name)
}

func TestCapabilityVersion(t *testing.T) {
	source, _ := newTestSource(t)
	assert.Equal(t, ExpectedCapabilityVersion, source.CapabilityVersion())

	older, _ := newTestSource(t, WithCapabilityVersion(1))
	assert.Equal(t, 1, older.CapabilityVersion())
}
