package plugins

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T, name string, symbols ...Symbol) *Module {
	t.Helper()
	m, err := NewModule(name, CatalogSource, symbols...)
	require.NoError(t, err)
	return m
}

func TestResolver_SingleImplementation(t *testing.T) {
	m := newTestModule(t, "greeters.english",
		InterfaceOf[Greeter]("Greeter"),
		TypeOf("English", func() *englishGreeter { return &englishGreeter{} }),
		TypeOf("Unrelated", func() *unrelated { return &unrelated{} }),
		ValueOf("Version", "1.0.0"),
	)
	resolver := NewResolver(0, quietLogger())

	sym, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	require.NoError(t, err)
	require.NotNil(t, sym)
	assert.Equal(t, "English", sym.Name)

	v, err := sym.Instantiate()
	require.NoError(t, err)
	g, ok := v.(Greeter)
	require.True(t, ok)
	assert.Equal(t, "Hello, Ada", g.Greet("Ada"))
}

func TestResolver_ExcludesCapabilityItself(t *testing.T) {
	m := newTestModule(t, "greeters.api", InterfaceOf[Greeter]("Greeter"))
	resolver := NewResolver(0, quietLogger())

	sym, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	require.NoError(t, err)
	assert.Nil(t, sym)
}

func TestResolver_NoImplementation(t *testing.T) {
	m := newTestModule(t, "misc",
		TypeOf("Unrelated", func() *unrelated { return &unrelated{} }),
		ValueOf("Answer", 42),
	)
	resolver := NewResolver(0, quietLogger())

	sym, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	require.NoError(t, err)
	assert.Nil(t, sym)
}

func TestResolver_ValuesAreNotCandidates(t *testing.T) {
	// A value whose dynamic type implements the capability is not a type symbol
	m := newTestModule(t, "values", ValueOf("Instance", &englishGreeter{}))
	resolver := NewResolver(0, quietLogger())

	sym, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	require.NoError(t, err)
	assert.Nil(t, sym)
}

func TestResolver_Ambiguous(t *testing.T) {
	m := newTestModule(t, "greeters.all",
		TypeOf("English", func() *englishGreeter { return &englishGreeter{} }),
		TypeOf("French", func() *frenchGreeter { return &frenchGreeter{} }),
	)
	resolver := NewResolver(0, quietLogger())

	sym, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	assert.ErrorIs(t, err, ErrAmbiguousCapability)
	assert.Nil(t, sym)
	assert.Contains(t, err.Error(), "English")
	assert.Contains(t, err.Error(), "French")
}

func TestResolver_RefinedInterfaceIsCandidate(t *testing.T) {
	m := newTestModule(t, "greeters.loud",
		InterfaceOf[Greeter]("Greeter"),
		InterfaceOf[LoudGreeter]("LoudGreeter"),
	)
	resolver := NewResolver(0, quietLogger())

	sym, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	require.NoError(t, err)
	require.NotNil(t, sym)
	assert.Equal(t, "LoudGreeter", sym.Name)

	_, err = sym.Instantiate()
	assert.ErrorIs(t, err, ErrNotConstructible)
}

func TestResolver_InvalidCapability(t *testing.T) {
	m := newTestModule(t, "greeters.english",
		TypeOf("English", func() *englishGreeter { return &englishGreeter{} }),
	)
	resolver := NewResolver(0, quietLogger())

	_, err := resolver.ResolveSubclass(m, reflect.TypeFor[*englishGreeter]())
	assert.ErrorIs(t, err, ErrInvalidCapability)

	_, err = resolver.ResolveSubclass(m, nil)
	assert.ErrorIs(t, err, ErrInvalidCapability)

	_, err = resolver.ResolveSubclass(nil, CapabilityFor[Greeter]())
	assert.Error(t, err)
}

func TestResolver_Cache(t *testing.T) {
	m := newTestModule(t, "greeters.english",
		TypeOf("English", func() *englishGreeter { return &englishGreeter{} }),
	)
	resolver := NewResolver(0, quietLogger())

	var hits, misses int
	resolver.OnLookup = func(hit, found bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}

	first, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	require.NoError(t, err)
	second, err := resolver.ResolveSubclass(m, CapabilityFor[Greeter]())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, resolver.Len())

	// Misses are remembered too
	_, err = resolver.ResolveSubclass(m, CapabilityFor[LoudGreeter]())
	require.NoError(t, err)
	_, err = resolver.ResolveSubclass(m, CapabilityFor[LoudGreeter]())
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
	assert.Equal(t, 2, resolver.Len())

	resolver.Purge()
	assert.Equal(t, 0, resolver.Len())
}

func TestResolver_CacheKeyedByModuleInstance(t *testing.T) {
	resolver := NewResolver(0, quietLogger())

	before := newTestModule(t, "greeters.mod",
		TypeOf("English", func() *englishGreeter { return &englishGreeter{} }),
	)
	after := newTestModule(t, "greeters.mod",
		TypeOf("French", func() *frenchGreeter { return &frenchGreeter{} }),
	)

	sym, err := resolver.ResolveSubclass(before, CapabilityFor[Greeter]())
	require.NoError(t, err)
	assert.Equal(t, "English", sym.Name)

	sym, err = resolver.ResolveSubclass(after, CapabilityFor[Greeter]())
	require.NoError(t, err)
	assert.Equal(t, "French", sym.Name)
}

func TestInstantiate(t *testing.T) {
	resolver := NewResolver(0, quietLogger())

	t.Run("builds the implementation", func(t *testing.T) {
		m := newTestModule(t, "greeters.french",
			TypeOf("French", func() *frenchGreeter { return &frenchGreeter{} }),
		)
		g, ok, err := Instantiate[Greeter](resolver, m)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Bonjour, Ada", g.Greet("Ada"))
	})

	t.Run("reports absence", func(t *testing.T) {
		m := newTestModule(t, "greeters.none", ValueOf("X", 1))
		g, ok, err := Instantiate[Greeter](resolver, m)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, g)
	})

	t.Run("fresh instance per call", func(t *testing.T) {
		m := newTestModule(t, "greeters.fresh",
			TypeOf("English", func() *englishGreeter { return &englishGreeter{} }),
		)
		a, _, err := Instantiate[Greeter](resolver, m)
		require.NoError(t, err)
		b, _, err := Instantiate[Greeter](resolver, m)
		require.NoError(t, err)
		assert.NotSame(t, a.(*englishGreeter), b.(*englishGreeter))
	})
}
