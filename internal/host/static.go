package host

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/typesystem"
)

var (
	tInt    = typesystem.Int
	tDouble = typesystem.Double
	tString = typesystem.String
	tBool   = typesystem.Bool
	tUnit   = typesystem.Unit
	builder = typesystem.THost{Name: "strings.Builder"}
)

type wellKnown struct {
	sig  Signature
	impl any
}

func fn(owner, member string, impl any, result typesystem.Type, params ...typesystem.Type) wellKnown {
	return wellKnown{sig: Signature{Owner: owner, Member: member, Kind: KindFunc, Params: params, Result: result}, impl: impl}
}

func method(owner, member string, impl any, result typesystem.Type, params ...typesystem.Type) wellKnown {
	return wellKnown{sig: Signature{Owner: owner, Member: member, Kind: KindMethod, Params: params, Result: result}, impl: impl}
}

func field(owner, member string, value any, t typesystem.Type) wellKnown {
	return wellKnown{sig: Signature{Owner: owner, Member: member, Kind: KindField, Result: t}, impl: value}
}

// wellKnownMembers pairs the signatures of the fixed table with their
// implementations. Methods on host types with a nil impl are called
// reflectively on the receiver.
var wellKnownMembers = []wellKnown{
	fn("math", "Sqrt", math.Sqrt, tDouble, tDouble),
	fn("math", "Sin", math.Sin, tDouble, tDouble),
	fn("math", "Cos", math.Cos, tDouble, tDouble),
	fn("math", "Tan", math.Tan, tDouble, tDouble),
	fn("math", "Log", math.Log, tDouble, tDouble),
	fn("math", "Exp", math.Exp, tDouble, tDouble),
	fn("math", "Floor", math.Floor, tDouble, tDouble),
	fn("math", "Ceil", math.Ceil, tDouble, tDouble),
	fn("math", "Abs", math.Abs, tDouble, tDouble),
	fn("math", "Pow", math.Pow, tDouble, tDouble, tDouble),
	fn("math", "Max", math.Max, tDouble, tDouble, tDouble),
	fn("math", "Min", math.Min, tDouble, tDouble, tDouble),
	field("math", "Pi", math.Pi, tDouble),
	field("math", "E", math.E, tDouble),
	field("math", "MaxInt32", int64(math.MaxInt32), tInt),

	fn("strings", "ToUpper", strings.ToUpper, tString, tString),
	fn("strings", "ToLower", strings.ToLower, tString, tString),
	fn("strings", "TrimSpace", strings.TrimSpace, tString, tString),
	fn("strings", "Repeat", strings.Repeat, tString, tString, tInt),
	fn("strings", "Contains", strings.Contains, tBool, tString, tString),
	fn("strings", "HasPrefix", strings.HasPrefix, tBool, tString, tString),
	fn("strings", "HasSuffix", strings.HasSuffix, tBool, tString, tString),
	fn("strings", "Index", strings.Index, tInt, tString, tString),
	fn("strings", "Compare", strings.Compare, tInt, tString, tString),

	fn("strconv", "Itoa", strconv.Itoa, tString, tInt),
	fn("strconv", "FormatBool", strconv.FormatBool, tString, tBool),

	method("string", "Len", func(s string) int { return len(s) }, tInt),
	method("string", "ToUpper", strings.ToUpper, tString),
	method("string", "ToLower", strings.ToLower, tString),
	method("string", "TrimSpace", strings.TrimSpace, tString),
	method("string", "Contains", strings.Contains, tBool, tString),

	{sig: Signature{Owner: "strings.Builder", Kind: KindNew, Result: builder}},
	method("strings.Builder", "WriteString", nil, tInt, tString),
	method("strings.Builder", "String", nil, tString),
	method("strings.Builder", "Len", nil, tInt),
	method("strings.Builder", "Reset", nil, tUnit),
}

// StaticTable is the fixed table of well-known host signatures, optionally
// extended with configured bindings.
type StaticTable struct {
	entries map[string]*Signature
}

// NewStaticTable returns a table preloaded with the well-known members.
func NewStaticTable() *StaticTable {
	t := &StaticTable{entries: make(map[string]*Signature)}
	for i := range wellKnownMembers {
		sig := wellKnownMembers[i].sig
		t.Add(&sig)
	}
	return t
}

func (t *StaticTable) Add(sig *Signature) {
	t.entries[sig.Key()] = sig
}

func (t *StaticTable) Len() int { return len(t.entries) }

// AddBinding parses a configured binding. Every arrow of a func or method
// signature is a parameter; a method's receiver is its owner.
func (t *StaticTable) AddBinding(b config.Binding) error {
	kind, err := ParseKind(b.Kind)
	if err != nil {
		return err
	}
	sig := &Signature{Owner: b.Owner, Member: b.Member, Kind: kind}
	if kind == KindNew {
		sig.Member = ""
		sig.Result = typesystem.THost{Name: b.Owner}
		t.Add(sig)
		return nil
	}
	typ, err := typesystem.ParseSignature(b.Signature)
	if err != nil {
		return errors.Wrapf(err, "binding %s.%s", b.Owner, b.Member)
	}
	if kind == KindField {
		sig.Result = typ
		t.Add(sig)
		return nil
	}
	for {
		f, ok := typ.(typesystem.TFunc)
		if !ok {
			break
		}
		sig.Params = append(sig.Params, f.Param)
		typ = f.Result
	}
	sig.Result = typ
	t.Add(sig)
	return nil
}

func (t *StaticTable) Resolve(owner, member string, kind MemberKind, args []typesystem.Type) (*Signature, error) {
	sig, ok := t.entries[MemberKey(owner, member, kind)]
	if !ok || sig.Kind != kind {
		return nil, errors.Wrapf(ErrUnknownMember, "%s %s not in static table", kind, MemberKey(owner, member, kind))
	}
	return sig, nil
}
