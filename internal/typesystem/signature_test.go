package typesystem

import (
	"errors"
	"testing"
)

func sampleTypes() []Type {
	shape := TNamed{Name: "Shape"}
	opt := TApp{Name: "option", Args: []Type{TVar{ID: 0}}}
	base := []Type{
		Int, Double, String, Bool, Unit,
		TVar{ID: 0}, TVar{ID: 12}, TNumeric{ID: 3},
		shape, THost{Name: "strings.Builder"},
		opt,
		TApp{Name: "pair", Args: []Type{Int, String}},
		TApp{Name: "empty", Args: []Type{}},
	}
	var all []Type
	all = append(all, base...)
	for _, b := range base {
		all = append(all,
			TList{Elem: b},
			TList{Elem: TList{Elem: b}},
			TResult{Ok: b, Err: String},
			NewFunc(b, b),
			NewFunc(Int, NewFunc(b, Bool)),
			TFunc{Param: NewFunc(b, b), Result: TList{Elem: b}},
			TList{Elem: NewFunc(b, Int)},
			TApp{Name: "option", Args: []Type{NewFunc(b, b)}},
			TResult{Ok: NewFunc(b, Int), Err: TList{Elem: b}},
		)
	}
	all = append(all,
		TScheme{Vars: []int{0}, Body: NewFunc(TVar{ID: 0}, TVar{ID: 0})},
		TScheme{Vars: []int{3, 0}, Body: NewFunc(TList{Elem: TVar{ID: 0}}, TNumeric{ID: 3}, TNumeric{ID: 3})},
		TFunc{Param: TScheme{Vars: []int{1}, Body: TVar{ID: 1}}, Result: Int},
		TList{Elem: TScheme{Vars: []int{1}, Body: NewFunc(TVar{ID: 1}, TVar{ID: 1})}},
	)
	return all
}

func TestSignatureRoundTrip(t *testing.T) {
	for _, want := range sampleTypes() {
		text := RenderSignature(want)
		got, err := ParseSignature(text)
		if err != nil {
			t.Errorf("ParseSignature(%q): %v", text, err)
			continue
		}
		if !Equal(got, want) {
			t.Errorf("round trip of %q: got %s, want %s", text, got, want)
		}
	}
}

func TestRenderSignature(t *testing.T) {
	tests := []struct {
		t    Type
		want string
	}{
		{NewFunc(Int, Int, Int), "int -> int -> int"},
		{TFunc{Param: NewFunc(Int, Int), Result: Int}, "(int -> int) -> int"},
		{TList{Elem: Double}, "double list"},
		{TList{Elem: NewFunc(Bool, String)}, "(string -> bool) list"},
		{TResult{Ok: Int, Err: String}, "(int, string) result"},
		{NewFunc(TNumeric{ID: 2}, TNumeric{ID: 2}), "'n2 -> 'n2"},
		{TScheme{Vars: []int{0}, Body: NewFunc(TVar{ID: 0}, TVar{ID: 0})}, "forall 't0. 't0 -> 't0"},
	}
	for _, tt := range tests {
		if got := RenderSignature(tt.t); got != tt.want {
			t.Errorf("RenderSignature(%s) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestParseSignatureErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"int ->",
		"(int, string)",
		"(int, string) list",
		"int result",
		"'x1",
		"'t",
		"@",
		"int )",
		"forall 't0 't0",
		"list",
		"int % bool",
	} {
		_, err := ParseSignature(src)
		var se *SignatureError
		if !errors.As(err, &se) {
			t.Errorf("ParseSignature(%q) error = %v, want *SignatureError", src, err)
		}
	}
}

func TestParseSignatureWhitespace(t *testing.T) {
	got, err := ParseSignature("  ( int->int )->  int   list ")
	if err != nil {
		t.Fatal(err)
	}
	want := TFunc{Param: NewFunc(Int, Int), Result: TList{Elem: Int}}
	if !Equal(got, want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}
