package analyzer

import (
	"github.com/funvibe/miniml/internal/typesystem"
)

// Finalize closes inference for the unit. Numeric variables that no
// polymorphic top-level function quantifies default to Int, then every type
// map entry, binding and instantiation is resolved.
func (e *Engine) Finalize(res *Result) {
	quantified := make(map[int]bool)
	for _, fn := range res.Functions {
		if s, ok := fn.Type.(typesystem.TScheme); ok {
			for _, id := range s.Vars {
				quantified[id] = true
			}
		}
	}
	defaultNumeric := func(t typesystem.Type) {
		for _, id := range typesystem.NumericIDs(e.subst.Resolve(t)) {
			if !quantified[id] {
				e.subst.Bind(id, typesystem.Int)
			}
		}
	}
	for _, t := range e.types {
		defaultNumeric(t)
	}
	for _, t := range res.Values {
		defaultNumeric(t)
	}
	if res.Main != nil {
		defaultNumeric(res.Main)
	}

	e.insts.finalize(e.subst)

	for node, t := range e.types {
		e.types[node] = e.resolve(t)
	}
	for _, fn := range res.Functions {
		fn.Type = e.resolve(fn.Type)
	}
	for name, t := range res.Values {
		res.Values[name] = e.resolve(t)
	}
	if res.Main != nil {
		res.Main = e.resolve(res.Main)
	}
	res.Types = e.types
	res.Instantiations = e.insts
	res.Host = e.hostSigs
}

func (e *Engine) resolve(t typesystem.Type) typesystem.Type {
	t = e.subst.Resolve(t)
	if s, ok := t.(typesystem.TScheme); ok {
		return s.Prune()
	}
	return t
}
