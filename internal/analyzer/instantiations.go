package analyzer

import (
	"sort"

	"github.com/funvibe/miniml/internal/typesystem"
)

// Instantiations records, per polymorphic top-level function, the concrete
// function types observed at its call sites.
type Instantiations struct {
	sets map[string]*instSet
}

type instSet struct {
	keys  []string
	types map[string]typesystem.Type
}

func newInstantiations() *Instantiations {
	return &Instantiations{sets: make(map[string]*instSet)}
}

// track creates the (empty) entry of a function.
func (in *Instantiations) track(name string) {
	if _, ok := in.sets[name]; !ok {
		in.sets[name] = &instSet{types: make(map[string]typesystem.Type)}
	}
}

// Tracks reports whether name has an entry.
func (in *Instantiations) Tracks(name string) bool {
	_, ok := in.sets[name]
	return ok
}

func (in *Instantiations) record(name string, t typesystem.Type) {
	set, ok := in.sets[name]
	if !ok {
		return
	}
	key := t.String()
	if _, dup := set.types[key]; dup {
		return
	}
	set.keys = append(set.keys, key)
	set.types[key] = t
}

// Of returns the instantiations of name ordered by their rendered form.
func (in *Instantiations) Of(name string) []typesystem.Type {
	set, ok := in.sets[name]
	if !ok {
		return nil
	}
	keys := append([]string(nil), set.keys...)
	sort.Strings(keys)
	out := make([]typesystem.Type, len(keys))
	for i, k := range keys {
		out[i] = set.types[k]
	}
	return out
}

// Names returns the tracked function names in sorted order.
func (in *Instantiations) Names() []string {
	names := make([]string, 0, len(in.sets))
	for name := range in.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// finalize resolves every recorded type and drops the ones that still hold
// inference variables.
func (in *Instantiations) finalize(s *typesystem.Subst) {
	for _, set := range in.sets {
		keys := set.keys[:0]
		types := make(map[string]typesystem.Type, len(set.types))
		for _, k := range set.keys {
			t := s.Resolve(set.types[k])
			if typesystem.HasVars(t) {
				continue
			}
			nk := t.String()
			if _, dup := types[nk]; dup {
				continue
			}
			keys = append(keys, nk)
			types[nk] = t
		}
		set.keys = keys
		set.types = types
	}
}
