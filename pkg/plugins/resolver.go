package plugins

import (
	"fmt"
	"reflect"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// DefaultResolverCacheSize bounds the number of remembered resolutions
const DefaultResolverCacheSize = 256

type resolveKey struct {
	module     *Module
	capability reflect.Type
}

// Resolver finds the implementation of a capability inside a module
type Resolver struct {
	cache *lru.Cache[resolveKey, *Symbol]
	log   *logrus.Logger

	// OnLookup, when set, observes every resolution: hit reports a cache
	// hit and found whether an implementation exists.
	OnLookup func(hit, found bool)
}

// NewResolver creates a resolver remembering up to size resolutions
func NewResolver(size int, log *logrus.Logger) *Resolver {
	if size <= 0 {
		size = DefaultResolverCacheSize
	}
	if log == nil {
		log = logrus.New()
	}

	cache, err := lru.New[resolveKey, *Symbol](size)
	if err != nil {
		// lru.New only fails for a non-positive size
		panic(err)
	}

	return &Resolver{cache: cache, log: log}
}

// ResolveSubclass returns the type symbol of module that implements
// capability and is not capability itself. A module without such a symbol
// yields nil and no error. More than one candidate is ErrAmbiguousCapability.
func (r *Resolver) ResolveSubclass(module *Module, capability reflect.Type) (*Symbol, error) {
	if module == nil {
		return nil, fmt.Errorf("cannot resolve capability in nil module")
	}
	if capability == nil || capability.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %v is not an interface type", ErrInvalidCapability, capability)
	}

	key := resolveKey{module: module, capability: capability}
	if sym, ok := r.cache.Get(key); ok {
		r.observe(true, sym != nil)
		return sym, nil
	}

	var candidates []Symbol
	for _, sym := range module.Symbols() {
		if !sym.IsType() || sym.Type == capability {
			continue
		}
		if sym.Type.Implements(capability) {
			candidates = append(candidates, sym)
		}
	}

	var found *Symbol
	switch len(candidates) {
	case 0:
		r.log.WithField("module", module.Name()).Debugf("No implementation of %v", capability)
	case 1:
		found = &candidates[0]
	default:
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.Name)
		}
		return nil, fmt.Errorf("%w: %s has %d implementations of %v (%s)",
			ErrAmbiguousCapability, module.Name(), len(candidates), capability, strings.Join(names, ", "))
	}

	r.cache.Add(key, found)
	r.observe(false, found != nil)
	return found, nil
}

// Purge forgets every remembered resolution
func (r *Resolver) Purge() {
	r.cache.Purge()
}

// Len returns the number of remembered resolutions
func (r *Resolver) Len() int {
	return r.cache.Len()
}

func (r *Resolver) observe(hit, found bool) {
	if r.OnLookup != nil {
		r.OnLookup(hit, found)
	}
}

// Instantiate resolves the implementation of interface T in module and
// builds a new instance. The boolean is false when no implementation exists.
func Instantiate[T any](r *Resolver, module *Module) (T, bool, error) {
	var zero T

	sym, err := r.ResolveSubclass(module, CapabilityFor[T]())
	if err != nil || sym == nil {
		return zero, false, err
	}

	v, err := sym.Instantiate()
	if err != nil {
		return zero, false, err
	}

	out, ok := v.(T)
	if !ok {
		return zero, false, fmt.Errorf("%w: %s.%s built %T", ErrInvalidCapability, module.Name(), sym.Name, v)
	}
	return out, true, nil
}
