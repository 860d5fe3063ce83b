package plugins

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		target      string
		module      string
		symbol      string
		expectError bool
	}{
		{target: "greeter.english:English", module: "greeter.english", symbol: "English"},
		{target: "greeter.english.English", module: "greeter.english", symbol: "English"},
		{target: "greeter:English", module: "greeter", symbol: "English"},
		{target: "root.nested1.module1.Thing", module: "root.nested1.module1", symbol: "Thing"},
		{target: "English", expectError: true},
		{target: "", expectError: true},
		{target: "greeter.", expectError: true},
		{target: ":English", expectError: true},
		{target: "bad-module.Sym", expectError: true},
		{target: "greeter:Not-Valid", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			module, symbol, err := ParseTarget(tt.target)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.module, module)
			assert.Equal(t, tt.symbol, symbol)
		})
	}
}

func TestEntryPoint_Validate(t *testing.T) {
	assert.NoError(t, EntryPoint{Group: "g", Name: "n", Target: "a.b:C"}.Validate())
	assert.ErrorIs(t, EntryPoint{Name: "n", Target: "a.b:C"}.Validate(), ErrInvalidEntryPoint)
	assert.ErrorIs(t, EntryPoint{Group: "g", Target: "a.b:C"}.Validate(), ErrInvalidEntryPoint)

	err := EntryPoint{Group: "g", Name: "n", Target: "nodot"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidEntryPoint)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestEntryPointIndex_LastWriteWins(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	index := NewEntryPointIndex(logger)
	require.NoError(t, index.Add(EntryPoint{Group: "greeters", Name: "hello", Target: "first.mod:A", Source: "one"}))
	require.NoError(t, index.Add(EntryPoint{Group: "greeters", Name: "hello", Target: "second.mod:B", Source: "two"}))

	entries := index.Entries("greeters", "hello")
	require.Len(t, entries, 1)
	assert.Equal(t, "second.mod:B", entries[0].Target)
	assert.Contains(t, buf.String(), "Duplicate entry point")
}

func TestEntryPointIndex_GroupsAndEntries(t *testing.T) {
	index := NewEntryPointIndex(quietLogger())
	require.NoError(t, index.Add(EntryPoint{Group: "zeta", Name: "b", Target: "m.b:B"}))
	require.NoError(t, index.Add(EntryPoint{Group: "alpha", Name: "z", Target: "m.z:Z"}))
	require.NoError(t, index.Add(EntryPoint{Group: "alpha", Name: "a", Target: "m.a:A"}))

	assert.Equal(t, []string{"alpha", "zeta"}, index.Groups())

	entries := index.Entries("alpha", "")
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "z", entries[1].Name)

	assert.Empty(t, index.Entries("alpha", "missing"))
	assert.Empty(t, index.Entries("missing", ""))

	assert.ErrorIs(t, index.Add(EntryPoint{Group: "alpha", Name: "bad", Target: "bad"}), ErrInvalidEntryPoint)
}

func TestEntryPointIndex_Manifests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "greeter", DefaultPackageMarker), `entry_points:
  anymod.greeters:
    english: greeter.english:English
    pirate: greeter.pirate.Pirate
`)
	writeFile(t, filepath.Join(root, "broken", DefaultPackageMarker), `entry_points:
  anymod.greeters:
    bad: not-a-target
`)
	writeFile(t, filepath.Join(root, "garbage", DefaultPackageMarker), "entry_points: [\n")

	index := NewEntryPointIndex(quietLogger())
	require.NoError(t, index.LoadFromDirs([]string{root}, ""))

	entries := index.Entries("anymod.greeters", "")
	require.Len(t, entries, 2)
	assert.Equal(t, "english", entries[0].Name)
	assert.Equal(t, filepath.Join(root, "greeter", DefaultPackageMarker), entries[0].Source)
	assert.Equal(t, "pirate", entries[1].Name)
}

func TestEntryPointIndex_LoadFromDirsPackageName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "greeter", DefaultPackageMarker), `entry_points:
  anymod.greeters:
    english: greeter.english:English
`)
	writeFile(t, filepath.Join(root, "named", DefaultPackageMarker), `name: friendly
entry_points:
  anymod.greeters:
    bad: not-a-target
`)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	index := NewEntryPointIndex(logger)
	require.NoError(t, index.LoadFromDirs([]string{root}, ""))
	require.Len(t, index.Entries("anymod.greeters", ""), 1)

	packages := map[string]logrus.Level{}
	for _, entry := range hook.AllEntries() {
		if name, ok := entry.Data["package"].(string); ok {
			packages[name] = entry.Level
		}
	}
	assert.Equal(t, map[string]logrus.Level{
		"greeter":  logrus.DebugLevel,
		"friendly": logrus.WarnLevel,
	}, packages, "unnamed manifests are named after their directory")
}

func TestEntryPointIndex_AddManifestInvalid(t *testing.T) {
	index := NewEntryPointIndex(quietLogger())
	err := index.AddManifest(&Manifest{EntryPoints: map[string]map[string]string{
		"g": {"n": "nodot"},
	}}, "inline")
	assert.ErrorIs(t, err, ErrInvalidEntryPoint)
	assert.Empty(t, index.Groups())
}

func TestEntryPointIndex_Merge(t *testing.T) {
	base := NewEntryPointIndex(quietLogger())
	require.NoError(t, base.Add(EntryPoint{Group: "g", Name: "a", Target: "m.a:A", Source: CatalogSource}))
	require.NoError(t, base.Add(EntryPoint{Group: "g", Name: "b", Target: "m.b:B", Source: CatalogSource}))

	overlay := NewEntryPointIndex(quietLogger())
	require.NoError(t, overlay.Add(EntryPoint{Group: "g", Name: "b", Target: "other.b:B", Source: "manifest"}))

	merged := NewEntryPointIndex(quietLogger())
	require.NoError(t, merged.Merge(base))
	require.NoError(t, merged.Merge(overlay))

	entries := merged.Entries("g", "")
	require.Len(t, entries, 2)
	assert.Equal(t, "m.a:A", entries[0].Target)
	assert.Equal(t, "other.b:B", entries[1].Target)
}

func TestEntryPointIndex_ByGroup(t *testing.T) {
	index := NewEntryPointIndex(quietLogger())
	require.NoError(t, index.Add(EntryPoint{Group: "greeters", Name: "english", Target: "greeter.english:English"}))
	require.NoError(t, index.Add(EntryPoint{Group: "greeters", Name: "french", Target: "greeter.french:French"}))

	load := func(target string) (Symbol, error) {
		switch target {
		case "greeter.english:English":
			return TypeOf("English", func() *englishGreeter { return &englishGreeter{} }), nil
		case "greeter.french:French":
			return TypeOf("French", func() *frenchGreeter { return &frenchGreeter{} }), nil
		}
		return Symbol{}, errors.New("unexpected target " + target)
	}

	t.Run("whole group", func(t *testing.T) {
		got, err := index.ByGroup("greeters", "", load)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "English", got["english"].Name)
		assert.Equal(t, "French", got["french"].Name)
	})

	t.Run("single name", func(t *testing.T) {
		got, err := index.ByGroup("greeters", "french", load)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Contains(t, got, "french")
	})

	t.Run("unknown group", func(t *testing.T) {
		got, err := index.ByGroup("nothing", "", load)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("load failure aborts", func(t *testing.T) {
		failing := func(target string) (Symbol, error) {
			return Symbol{}, ErrAttributeMissing
		}
		got, err := index.ByGroup("greeters", "", failing)
		assert.ErrorIs(t, err, ErrAttributeMissing)
		assert.Nil(t, got)
		assert.Contains(t, err.Error(), "greeters/english")
	})
}

func TestRegisterEntryPoint(t *testing.T) {
	t.Cleanup(func() {
		DefaultEntryPoints.mu.Lock()
		delete(DefaultEntryPoints.groups, "entrypoints_test")
		DefaultEntryPoints.mu.Unlock()
	})

	require.NoError(t, RegisterEntryPoint("entrypoints_test", "one", "some.module:Thing"))
	entries := DefaultEntryPoints.Entries("entrypoints_test", "one")
	require.Len(t, entries, 1)
	assert.Equal(t, CatalogSource, entries[0].Source)

	assert.Error(t, RegisterEntryPoint("entrypoints_test", "two", "nodot"))
}
