package typesystem

// Unify makes t1 and t2 equal by extending s, or fails with a *UnifyError.
// Both sides are pruned first; bindings made before a failure are kept, the
// caller is expected to abandon the compilation unit.
func (s *Subst) Unify(t1, t2 Type) error {
	t1 = s.Prune(t1)
	t2 = s.Prune(t2)

	if v, ok := t1.(TVar); ok {
		return s.bindVar(v, t2)
	}
	if v, ok := t2.(TVar); ok {
		return s.bindVar(v, t1)
	}
	if n, ok := t1.(TNumeric); ok {
		return s.bindNumeric(n, t2)
	}
	if n, ok := t2.(TNumeric); ok {
		return s.bindNumeric(n, t1)
	}

	switch a := t1.(type) {
	case TFunc:
		b, ok := t2.(TFunc)
		if !ok {
			return errUnify(t1, t2)
		}
		if err := s.Unify(a.Param, b.Param); err != nil {
			return err
		}
		return s.Unify(a.Result, b.Result)
	case TList:
		b, ok := t2.(TList)
		if !ok {
			return errUnify(t1, t2)
		}
		return s.Unify(a.Elem, b.Elem)
	case TResult:
		b, ok := t2.(TResult)
		if !ok {
			return errUnify(t1, t2)
		}
		if err := s.Unify(a.Ok, b.Ok); err != nil {
			return err
		}
		return s.Unify(a.Err, b.Err)
	case TApp:
		b, ok := t2.(TApp)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return errUnify(t1, t2)
		}
		for i := range a.Args {
			if err := s.Unify(a.Args[i], b.Args[i]); err != nil {
				return err
			}
		}
		return nil
	case TNamed:
		if b, ok := t2.(TNamed); ok && a.Name == b.Name {
			return nil
		}
		return errUnify(t1, t2)
	case THost:
		if b, ok := t2.(THost); ok && a.Name == b.Name {
			return nil
		}
		return errUnify(t1, t2)
	case TInt, TDouble, TString, TBool, TUnit:
		if t1 == t2 {
			return nil
		}
		return errUnify(t1, t2)
	}
	return errUnify(t1, t2)
}

func (s *Subst) bindVar(v TVar, t Type) error {
	if tv, ok := t.(TVar); ok && tv.ID == v.ID {
		return nil
	}
	if s.Occurs(v.ID, t) {
		return errRecursive(v, s.Resolve(t))
	}
	s.Bind(v.ID, t)
	return nil
}

// bindNumeric accepts only Int, Double or another numeric variable.
func (s *Subst) bindNumeric(n TNumeric, t Type) error {
	switch t := t.(type) {
	case TNumeric:
		if t.ID != n.ID {
			s.Bind(n.ID, t)
		}
		return nil
	case TInt, TDouble:
		s.Bind(n.ID, t)
		return nil
	}
	return errNotNumeric(n, t)
}
