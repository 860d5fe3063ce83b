package plugins

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathRegistry_Add(t *testing.T) {
	dir := t.TempDir()
	registry := NewPathRegistry(quietLogger())

	require.NoError(t, registry.Add(dir))
	assert.Equal(t, []string{dir}, registry.Paths())

	// Duplicate add is a no-op
	require.NoError(t, registry.Add(dir))
	assert.Equal(t, 1, registry.Len())
}

func TestPathRegistry_AddNonexistent(t *testing.T) {
	registry := NewPathRegistry(quietLogger())
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")

	assert.NotPanics(t, func() {
		err := registry.Add(missing)
		assert.ErrorIs(t, err, ErrPathNotFound)
	})
	assert.False(t, registry.Contains(missing))
	assert.Empty(t, registry.Paths())

	assert.ErrorIs(t, registry.Add(""), ErrPathNotFound)
}

func TestPathRegistry_AddFileUsesDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "module.go")
	writeFile(t, file, "package x\n")

	registry := NewPathRegistry(quietLogger())
	require.NoError(t, registry.Add(file))

	assert.Equal(t, []string{dir}, registry.Paths())
	assert.True(t, registry.Contains(dir))
}

func TestPathRegistry_Remove(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	registry := NewPathRegistry(quietLogger())
	require.NoError(t, registry.Add(first))
	require.NoError(t, registry.Add(second))

	require.NoError(t, registry.Remove(first))
	assert.Equal(t, []string{second}, registry.Paths())

	err := registry.Remove(first)
	assert.ErrorIs(t, err, ErrPathNotRegistered)
	assert.Equal(t, []string{second}, registry.Paths())
}

func TestPathRegistry_OrderAndCopy(t *testing.T) {
	dirs := []string{t.TempDir(), t.TempDir(), t.TempDir()}
	registry := NewPathRegistry(quietLogger())
	for _, d := range dirs {
		require.NoError(t, registry.Add(d))
	}

	paths := registry.Paths()
	assert.Equal(t, dirs, paths)

	paths[0] = "mutated"
	assert.Equal(t, dirs[0], registry.Paths()[0])
}

func TestPathRegistry_Instances(t *testing.T) {
	dir := t.TempDir()
	a := NewPathRegistry(quietLogger())
	b := NewPathRegistry(quietLogger())

	require.NoError(t, a.Add(dir))
	assert.True(t, a.Contains(dir))
	assert.False(t, b.Contains(dir))
}

func TestPathRegistry_Concurrent(t *testing.T) {
	registry := NewPathRegistry(quietLogger())
	dirs := make([]string, 20)
	for i := range dirs {
		dirs[i] = t.TempDir()
	}

	var wg sync.WaitGroup
	for _, d := range dirs {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = registry.Add(d)
		}()
		go func() {
			defer wg.Done()
			_ = registry.Paths()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(dirs), registry.Len())
}
