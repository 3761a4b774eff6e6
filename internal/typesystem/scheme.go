package typesystem

// IsPolymorphic reports whether t is a scheme quantifying at least one
// variable.
func IsPolymorphic(t Type) bool {
	s, ok := t.(TScheme)
	return ok && len(s.Vars) > 0
}

// Generalize quantifies the free variables of t that are not in envVars.
// It returns t unchanged when nothing can be quantified.
func Generalize(t Type, envVars map[int]bool) Type {
	var vars []int
	for _, id := range FreeVars(t) {
		if !envVars[id] {
			vars = append(vars, id)
		}
	}
	if len(vars) == 0 {
		return t
	}
	return TScheme{Vars: vars, Body: t}
}

// Instantiate replaces the quantified variables of a scheme with fresh
// variables of the same kind. Non-schemes are returned as they are.
func Instantiate(t Type, fresh func(numeric bool) Type) Type {
	s, ok := t.(TScheme)
	if !ok {
		return t
	}
	kinds := varKinds(s.Body)
	mapping := make(map[int]Type, len(s.Vars))
	for _, id := range s.Vars {
		mapping[id] = fresh(kinds[id])
	}
	return Replace(s.Body, mapping)
}

// NumericIDs returns the ids of the free numeric variables of t.
func NumericIDs(t Type) []int {
	var ids []int
	seen := map[int]bool{}
	walkVars(t, nil, func(id int, numeric bool) {
		if numeric && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	})
	return ids
}

// Prune drops quantified variables that no longer occur in the body, and the
// scheme itself once it quantifies nothing.
func (t TScheme) Prune() Type {
	free := map[int]bool{}
	for _, id := range FreeVars(t.Body) {
		free[id] = true
	}
	var vars []int
	for _, id := range t.Vars {
		if free[id] {
			vars = append(vars, id)
		}
	}
	if len(vars) == 0 {
		return t.Body
	}
	return TScheme{Vars: vars, Body: t.Body}
}
