package host

import (
	"errors"
	"reflect"
	"testing"

	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/typesystem"
)

func TestStaticTableResolve(t *testing.T) {
	table := NewStaticTable()
	tests := []struct {
		owner, member string
		kind          MemberKind
		want          typesystem.Type
	}{
		{"math", "Sqrt", KindFunc, typesystem.NewFunc(typesystem.Double, typesystem.Double)},
		{"math", "Pow", KindFunc, typesystem.NewFunc(typesystem.Double, typesystem.Double, typesystem.Double)},
		{"strings", "Repeat", KindFunc, typesystem.NewFunc(typesystem.String, typesystem.String, typesystem.Int)},
		{"string", "Len", KindMethod, typesystem.Int},
		{"math", "Pi", KindField, typesystem.Double},
		{"strings.Builder", "", KindNew, typesystem.THost{Name: "strings.Builder"}},
	}
	for _, tt := range tests {
		sig, err := table.Resolve(tt.owner, tt.member, tt.kind, nil)
		if err != nil {
			t.Fatalf("Resolve(%s.%s): %v", tt.owner, tt.member, err)
		}
		got := typesystem.NewFunc(sig.Result, sig.Params...)
		if !typesystem.Equal(got, tt.want) {
			t.Errorf("%s.%s: got %s, want %s", tt.owner, tt.member, got, tt.want)
		}
	}
	if _, err := table.Resolve("math", "Sqrt", KindField, nil); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("kind mismatch must be unknown, got %v", err)
	}
	if _, err := table.Resolve("math", "Nope", KindFunc, nil); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}

func TestStaticTableBindings(t *testing.T) {
	table := NewStaticTable()
	before := table.Len()
	bindings := []config.Binding{
		{Owner: "strings", Member: "Title", Signature: "string -> string", Kind: "func"},
		{Owner: "example.com/geo.Point", Member: "Dist", Signature: "@example.com/geo.Point -> double", Kind: "method"},
		{Owner: "example.com/geo", Member: "Origin", Signature: "@example.com/geo.Point", Kind: "field"},
		{Owner: "example.com/geo.Point", Kind: "new"},
	}
	for _, b := range bindings {
		if err := table.AddBinding(b); err != nil {
			t.Fatalf("AddBinding(%+v): %v", b, err)
		}
	}
	if table.Len() != before+len(bindings) {
		t.Fatalf("table has %d entries, want %d", table.Len(), before+len(bindings))
	}
	sig, err := table.Resolve("example.com/geo.Point", "Dist", KindMethod, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig.Params) != 1 || sig.Result != typesystem.Double {
		t.Fatalf("unexpected signature %s", sig)
	}
	if err := table.AddBinding(config.Binding{Owner: "a", Member: "b", Signature: "int ->"}); err == nil {
		t.Fatalf("expected signature parse error")
	}
}

type stubResolver struct {
	sig *Signature
	err error
}

func (s stubResolver) Resolve(string, string, MemberKind, []typesystem.Type) (*Signature, error) {
	return s.sig, s.err
}

func TestChain(t *testing.T) {
	want := &Signature{Owner: "x", Member: "y", Result: typesystem.Int}
	r := Chain(NewStaticTable(), nil, stubResolver{sig: want})
	got, err := r.Resolve("x", "y", KindFunc, nil)
	if err != nil || got != want {
		t.Fatalf("got %v, %v", got, err)
	}

	hard := errors.New("broken")
	r = Chain(stubResolver{err: hard}, stubResolver{sig: want})
	if _, err := r.Resolve("x", "y", KindFunc, nil); !errors.Is(err, hard) {
		t.Fatalf("non-lookup errors must stop the chain, got %v", err)
	}

	r = Chain(NewStaticTable())
	if _, err := r.Resolve("x", "y", KindFunc, nil); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	got, err := r.Call("strings.Repeat", []any{"ab", int64(3)})
	if err != nil || got != "ababab" {
		t.Fatalf("Repeat = %v, %v", got, err)
	}
	got, err = r.Call("strings.Index", []any{"hello", "l"})
	if err != nil || got != int64(2) {
		t.Fatalf("Index = %#v, %v", got, err)
	}
	got, err = r.CallMethod("string", "héllo", "Len", nil)
	if err != nil || got != int64(6) {
		t.Fatalf("Len = %#v, %v", got, err)
	}
	pi, err := r.Field("math.Pi")
	if err != nil || pi.(float64) < 3.14 {
		t.Fatalf("Pi = %v, %v", pi, err)
	}

	b, err := r.New("strings.Builder")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CallMethod("strings.Builder", b, "WriteString", []any{"mini"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CallMethod("strings.Builder", b, "WriteString", []any{"ml"}); err != nil {
		t.Fatal(err)
	}
	got, err = r.CallMethod("strings.Builder", b, "String", nil)
	if err != nil || got != "miniml" {
		t.Fatalf("String = %v, %v", got, err)
	}

	if _, err := r.Call("strings.Nope", nil); err == nil {
		t.Fatalf("expected link error")
	}
	if _, err := r.Call("strings.Repeat", []any{"x"}); err == nil {
		t.Fatalf("expected arity error")
	}
	if err := r.RegisterFunc("geo", "Twice", func(n int) int { return 2 * n }); err != nil {
		t.Fatal(err)
	}
	got, err = r.Call("geo.Twice", []any{int64(21)})
	if err != nil || got != int64(42) {
		t.Fatalf("Twice = %#v, %v", got, err)
	}
	if err := r.RegisterFunc("geo", "Bad", 3); err == nil {
		t.Fatalf("expected error registering a non-function")
	}
	r.RegisterType("reflect.Value", reflect.TypeOf(reflect.Value{}))
	if _, err := r.New("reflect.Value"); err != nil {
		t.Fatal(err)
	}
}

func TestPackagesResolver(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	r := NewPackagesResolver(".")
	sig, err := r.Resolve("strings", "EqualFold", KindFunc, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := typesystem.NewFunc(typesystem.Bool, typesystem.String, typesystem.String)
	if got := typesystem.NewFunc(sig.Result, sig.Params...); !typesystem.Equal(got, want) {
		t.Fatalf("EqualFold: got %s, want %s", got, want)
	}

	sig, err = r.Resolve("strconv", "Atoi", KindFunc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Result != typesystem.Int {
		t.Fatalf("Atoi result %s, error result must be dropped", sig.Result)
	}

	sig, err = r.Resolve("bytes.Buffer", "Len", KindMethod, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Result != typesystem.Int || len(sig.Params) != 0 {
		t.Fatalf("Buffer.Len: %s", sig)
	}

	sig, err = r.Resolve("math", "MaxInt8", KindField, nil)
	if err != nil || sig.Result != typesystem.Int {
		t.Fatalf("MaxInt8: %v, %v", sig, err)
	}

	if _, err := r.Resolve("strings", "NoSuchFunc", KindFunc, nil); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
	if _, err := r.Resolve("fmt", "Println", KindFunc, nil); err == nil {
		t.Fatalf("variadic functions must be rejected")
	}
}

func TestNewResolverFromConfig(t *testing.T) {
	r, err := NewResolver(config.HostConfig{Bindings: []config.Binding{
		{Owner: "strings", Member: "Title", Signature: "string -> string", Kind: "func"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	sig, err := r.Resolve("strings", "Title", KindFunc, nil)
	if err != nil {
		t.Fatalf("configured binding: %v", err)
	}
	if !typesystem.Equal(sig.Result, typesystem.String) || len(sig.Params) != 1 {
		t.Errorf("got %s", sig)
	}
	if _, err := r.Resolve("math", "Sqrt", KindFunc, nil); err != nil {
		t.Errorf("well-known member lost: %v", err)
	}

	_, err = NewResolver(config.HostConfig{Bindings: []config.Binding{
		{Owner: "strings", Member: "Bad", Signature: "string ->", Kind: "func"},
	}})
	if err == nil {
		t.Fatal("expected a signature error")
	}
}
