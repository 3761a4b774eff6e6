package typesystem

import (
	"errors"
	"testing"
)

func unifyErrKind(t *testing.T, err error) UnifyErrorKind {
	t.Helper()
	var ue *UnifyError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnifyError, got %v", err)
	}
	return ue.Kind
}

func TestUnifyPrimitives(t *testing.T) {
	tests := []struct {
		a, b Type
		ok   bool
	}{
		{Int, Int, true},
		{Int, Double, false},
		{String, String, true},
		{Bool, Unit, false},
		{TList{Elem: Int}, TList{Elem: Int}, true},
		{TList{Elem: Int}, TList{Elem: String}, false},
		{TNamed{Name: "Shape"}, TNamed{Name: "Shape"}, true},
		{TNamed{Name: "Shape"}, TNamed{Name: "Color"}, false},
		{THost{Name: "strings.Builder"}, THost{Name: "strings.Builder"}, true},
		{TApp{Name: "Option", Args: []Type{Int}}, TApp{Name: "Option", Args: []Type{Int}}, true},
		{TApp{Name: "Option", Args: []Type{Int}}, TApp{Name: "Option", Args: []Type{Bool}}, false},
	}
	for _, tt := range tests {
		err := NewSubst().Unify(tt.a, tt.b)
		if (err == nil) != tt.ok {
			t.Errorf("Unify(%s, %s) error = %v, want ok=%v", tt.a, tt.b, err, tt.ok)
		}
	}
}

func TestUnifyBindsVariables(t *testing.T) {
	s := NewSubst()
	a, b := TVar{ID: 1}, TVar{ID: 2}
	f1 := NewFunc(b, a)
	f2 := NewFunc(TList{Elem: a}, Int)
	if err := s.Unify(f1, f2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Resolve(f1); !Equal(got, NewFunc(TList{Elem: Int}, Int)) {
		t.Fatalf("got %s", got)
	}
}

func TestOccursCheck(t *testing.T) {
	s := NewSubst()
	v := TVar{ID: 7}
	err := s.Unify(v, TList{Elem: v})
	if err == nil {
		t.Fatalf("expected recursive type error")
	}
	if kind := unifyErrKind(t, err); kind != RecursiveError {
		t.Fatalf("got kind %v, want RecursiveError", kind)
	}
	if _, bound := s.Lookup(7); bound {
		t.Fatalf("variable must stay unbound after occurs failure")
	}
}

func TestOccursCheckThroughChain(t *testing.T) {
	s := NewSubst()
	a, b := TVar{ID: 1}, TVar{ID: 2}
	if err := s.Unify(a, b); err != nil {
		t.Fatal(err)
	}
	err := s.Unify(b, NewFunc(Int, a))
	if err == nil || unifyErrKind(t, err) != RecursiveError {
		t.Fatalf("expected recursive type error, got %v", err)
	}
}

func TestNumericClass(t *testing.T) {
	tests := []struct {
		name string
		with Type
		ok   bool
	}{
		{"int", Int, true},
		{"double", Double, true},
		{"numeric", TNumeric{ID: 9}, true},
		{"string", String, false},
		{"bool", Bool, false},
		{"list", TList{Elem: Int}, false},
		{"function", NewFunc(Int, Int), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSubst()
			n := TNumeric{ID: 1}
			err := s.Unify(n, tt.with)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || unifyErrKind(t, err) != NumericError {
				t.Fatalf("expected numeric error, got %v", err)
			}
		})
	}
}

func TestVarBindsToNumeric(t *testing.T) {
	s := NewSubst()
	v, n := TVar{ID: 1}, TNumeric{ID: 2}
	if err := s.Unify(v, n); err != nil {
		t.Fatal(err)
	}
	if err := s.Unify(v, String); err == nil {
		t.Fatalf("variable bound to numeric must reject String")
	}
	if err := s.Unify(v, Double); err != nil {
		t.Fatal(err)
	}
	if got := s.Resolve(n); got != Double {
		t.Fatalf("numeric resolved to %s", got)
	}
}

func TestPruneCompressesPath(t *testing.T) {
	s := NewSubst()
	s.Bind(1, TVar{ID: 2})
	s.Bind(2, TVar{ID: 3})
	s.Bind(3, Int)
	if got := s.Prune(TVar{ID: 1}); got != Int {
		t.Fatalf("Prune = %s", got)
	}
	if direct, _ := s.Lookup(1); direct != Int {
		t.Fatalf("path not compressed: 1 -> %s", direct)
	}
}

func TestMatchAndReplace(t *testing.T) {
	generic := NewFunc(TNumeric{ID: 4}, TNumeric{ID: 4}, TList{Elem: TVar{ID: 5}})
	concrete := NewFunc(Double, Double, TList{Elem: String})
	mapping := map[int]Type{}
	if !Match(generic, concrete, mapping) {
		t.Fatalf("Match failed")
	}
	if got := Replace(generic, mapping); !Equal(got, concrete) {
		t.Fatalf("Replace = %s", got)
	}
	if Match(generic, NewFunc(String, String, TList{Elem: String}), map[int]Type{}) {
		t.Fatalf("numeric variable must not match String")
	}
	if Match(NewFunc(TVar{ID: 1}, TVar{ID: 1}), NewFunc(Int, Double), map[int]Type{}) {
		t.Fatalf("one variable cannot match two types")
	}
}

func TestGeneralizeInstantiate(t *testing.T) {
	body := NewFunc(TNumeric{ID: 2}, TVar{ID: 1}, TNumeric{ID: 2})
	scheme := Generalize(body, map[int]bool{1: true})
	s, ok := scheme.(TScheme)
	if !ok || len(s.Vars) != 1 || s.Vars[0] != 2 {
		t.Fatalf("Generalize = %s", scheme)
	}
	next := 100
	inst := Instantiate(scheme, func(numeric bool) Type {
		next++
		if numeric {
			return TNumeric{ID: next}
		}
		return TVar{ID: next}
	})
	want := NewFunc(TNumeric{ID: 101}, TVar{ID: 1}, TNumeric{ID: 101})
	if !Equal(inst, want) {
		t.Fatalf("Instantiate = %s, want %s", inst, want)
	}
	if Generalize(Int, nil) != Int {
		t.Fatalf("closed types must not be wrapped in a scheme")
	}
	if got := (TScheme{Vars: []int{1, 2}, Body: NewFunc(Int, TVar{ID: 2})}).Prune(); !Equal(got, TScheme{Vars: []int{2}, Body: NewFunc(Int, TVar{ID: 2})}) {
		t.Fatalf("Prune = %s", got)
	}
}
