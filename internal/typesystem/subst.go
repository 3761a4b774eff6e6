package typesystem

// Subst maps inference variable ids to the types they are bound to.
// It is mutated in place by Bind and read through Prune.
type Subst struct {
	bindings map[int]Type
}

func NewSubst() *Subst {
	return &Subst{bindings: make(map[int]Type)}
}

func (s *Subst) Len() int { return len(s.bindings) }

// Lookup returns the direct binding of id, if any.
func (s *Subst) Lookup(id int) (Type, bool) {
	t, ok := s.bindings[id]
	return t, ok
}

// Bind records id := t. The occurs check is the caller's job (see Unify).
func (s *Subst) Bind(id int, t Type) {
	s.bindings[id] = t
}

// Prune follows variable bindings until it reaches an unbound variable or a
// non-variable type, compressing the chain on the way back.
func (s *Subst) Prune(t Type) Type {
	var id int
	switch v := t.(type) {
	case TVar:
		id = v.ID
	case TNumeric:
		id = v.ID
	default:
		return t
	}
	bound, ok := s.bindings[id]
	if !ok {
		return t
	}
	root := s.Prune(bound)
	if !Equal(root, bound) {
		s.bindings[id] = root
	}
	return root
}

// Resolve prunes t and all of its components, returning a type with no
// references into the substitution.
func (s *Subst) Resolve(t Type) Type {
	t = s.Prune(t)
	switch t := t.(type) {
	case TList:
		return TList{Elem: s.Resolve(t.Elem)}
	case TResult:
		return TResult{Ok: s.Resolve(t.Ok), Err: s.Resolve(t.Err)}
	case TFunc:
		return TFunc{Param: s.Resolve(t.Param), Result: s.Resolve(t.Result)}
	case TApp:
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = s.Resolve(a)
		}
		return TApp{Name: t.Name, Args: args}
	case TScheme:
		return TScheme{Vars: t.Vars, Body: s.Resolve(t.Body)}
	}
	return t
}

// Occurs reports whether variable id occurs in t once pruned.
func (s *Subst) Occurs(id int, t Type) bool {
	t = s.Prune(t)
	switch t := t.(type) {
	case TVar:
		return t.ID == id
	case TNumeric:
		return t.ID == id
	case TList:
		return s.Occurs(id, t.Elem)
	case TResult:
		return s.Occurs(id, t.Ok) || s.Occurs(id, t.Err)
	case TFunc:
		return s.Occurs(id, t.Param) || s.Occurs(id, t.Result)
	case TApp:
		for _, a := range t.Args {
			if s.Occurs(id, a) {
				return true
			}
		}
	case TScheme:
		return s.Occurs(id, t.Body)
	}
	return false
}

// Replace substitutes variables in t by id using the given mapping, without
// consulting any Subst. Variables missing from the mapping are kept.
// It is used for instantiation and specialization.
func Replace(t Type, mapping map[int]Type) Type {
	if len(mapping) == 0 {
		return t
	}
	switch t := t.(type) {
	case TVar:
		if r, ok := mapping[t.ID]; ok {
			return r
		}
	case TNumeric:
		if r, ok := mapping[t.ID]; ok {
			return r
		}
	case TList:
		return TList{Elem: Replace(t.Elem, mapping)}
	case TResult:
		return TResult{Ok: Replace(t.Ok, mapping), Err: Replace(t.Err, mapping)}
	case TFunc:
		return TFunc{Param: Replace(t.Param, mapping), Result: Replace(t.Result, mapping)}
	case TApp:
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = Replace(a, mapping)
		}
		return TApp{Name: t.Name, Args: args}
	case TScheme:
		inner := make(map[int]Type, len(mapping))
		for id, r := range mapping {
			inner[id] = r
		}
		for _, id := range t.Vars {
			delete(inner, id)
		}
		return TScheme{Vars: t.Vars, Body: Replace(t.Body, inner)}
	}
	return t
}

// Match computes the one-way mapping that turns pattern into concrete, adding
// it to mapping. Non-variable shapes must agree; it reports false otherwise.
func Match(pattern, concrete Type, mapping map[int]Type) bool {
	switch p := pattern.(type) {
	case TVar:
		return matchVar(p.ID, concrete, mapping)
	case TNumeric:
		switch concrete.(type) {
		case TInt, TDouble, TNumeric:
			return matchVar(p.ID, concrete, mapping)
		}
		return false
	case TList:
		c, ok := concrete.(TList)
		return ok && Match(p.Elem, c.Elem, mapping)
	case TResult:
		c, ok := concrete.(TResult)
		return ok && Match(p.Ok, c.Ok, mapping) && Match(p.Err, c.Err, mapping)
	case TFunc:
		c, ok := concrete.(TFunc)
		return ok && Match(p.Param, c.Param, mapping) && Match(p.Result, c.Result, mapping)
	case TApp:
		c, ok := concrete.(TApp)
		if !ok || c.Name != p.Name || len(c.Args) != len(p.Args) {
			return false
		}
		for i := range p.Args {
			if !Match(p.Args[i], c.Args[i], mapping) {
				return false
			}
		}
		return true
	case TScheme:
		return Match(p.Body, concrete, mapping)
	}
	return Equal(pattern, concrete)
}

func matchVar(id int, concrete Type, mapping map[int]Type) bool {
	if prev, ok := mapping[id]; ok {
		return Equal(prev, concrete)
	}
	mapping[id] = concrete
	return true
}
