package analyzer

import (
	"github.com/benbjohnson/immutable"

	"github.com/funvibe/miniml/internal/typesystem"
)

// Binding is the type of a name in scope. Global marks top-level
// declarations, builtins and imports.
type Binding struct {
	Type   typesystem.Type
	Global bool
}

// TypeEnv is a persistent name -> type mapping. Extending returns a new
// environment and leaves the receiver untouched, so sibling scopes never see
// each other's bindings.
type TypeEnv struct {
	m *immutable.Map[string, Binding]
}

func NewTypeEnv() TypeEnv {
	return TypeEnv{m: immutable.NewMap[string, Binding](nil)}
}

func (env TypeEnv) Lookup(name string) (Binding, bool) {
	if env.m == nil {
		return Binding{}, false
	}
	return env.m.Get(name)
}

// Extend binds a local name.
func (env TypeEnv) Extend(name string, t typesystem.Type) TypeEnv {
	return env.set(name, Binding{Type: t})
}

// ExtendGlobal binds a top-level name.
func (env TypeEnv) ExtendGlobal(name string, t typesystem.Type) TypeEnv {
	return env.set(name, Binding{Type: t, Global: true})
}

func (env TypeEnv) set(name string, b Binding) TypeEnv {
	m := env.m
	if m == nil {
		m = immutable.NewMap[string, Binding](nil)
	}
	return TypeEnv{m: m.Set(name, b)}
}

func (env TypeEnv) Len() int {
	if env.m == nil {
		return 0
	}
	return env.m.Len()
}

// Each calls fn for every binding in unspecified order.
func (env TypeEnv) Each(fn func(name string, b Binding)) {
	if env.m == nil {
		return
	}
	itr := env.m.Iterator()
	for !itr.Done() {
		name, b, _ := itr.Next()
		fn(name, b)
	}
}

// freeVars collects the variables free in the environment once resolved
// through s.
func (env TypeEnv) freeVars(s *typesystem.Subst) map[int]bool {
	free := make(map[int]bool)
	env.Each(func(_ string, b Binding) {
		for _, id := range typesystem.FreeVars(s.Resolve(b.Type)) {
			free[id] = true
		}
	})
	return free
}
