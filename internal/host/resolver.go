// Package host describes and links the members of the host platform (Go
// packages) that miniml programs may call.
package host

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/typesystem"
)

type MemberKind int

const (
	KindFunc   MemberKind = iota // package-level function
	KindMethod                   // method on a host value
	KindField                    // package-level variable or constant
	KindNew                      // allocation of a host type
)

func (k MemberKind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	case KindNew:
		return "new"
	}
	return "func"
}

// ParseKind maps a config binding kind to a MemberKind.
func ParseKind(s string) (MemberKind, error) {
	switch s {
	case "", "func":
		return KindFunc, nil
	case "method":
		return KindMethod, nil
	case "field":
		return KindField, nil
	case "new":
		return KindNew, nil
	}
	return 0, errors.Errorf("unknown host member kind %q", s)
}

// Signature is the miniml view of one host member.
//
// Owner is a package path for functions and fields, and a type name for
// methods and allocations ("string", "strings.Builder").
type Signature struct {
	Owner  string
	Member string
	Kind   MemberKind
	Params []typesystem.Type
	Result typesystem.Type
}

// Key identifies the member in tables and registries.
func (s *Signature) Key() string {
	return MemberKey(s.Owner, s.Member, s.Kind)
}

func (s *Signature) String() string {
	return fmt.Sprintf("%s %s : %s", s.Kind, s.Key(), typesystem.NewFunc(s.Result, s.Params...))
}

// MemberKey builds the lookup key of a host member.
func MemberKey(owner, member string, kind MemberKind) string {
	if kind == KindNew {
		return "new " + owner
	}
	return owner + "." + member
}

// ErrUnknownMember is returned (wrapped) by resolvers that do not know a member.
var ErrUnknownMember = errors.New("unknown host member")

// Resolver maps a host member reference and the miniml types of its
// arguments to the member's signature.
type Resolver interface {
	Resolve(owner, member string, kind MemberKind, args []typesystem.Type) (*Signature, error)
}

// OwnerOf names the host owner of a receiver type for method calls.
func OwnerOf(receiver typesystem.Type) (string, bool) {
	switch r := receiver.(type) {
	case typesystem.TString:
		return "string", true
	case typesystem.THost:
		return r.Name, true
	}
	return "", false
}

type chain []Resolver

// Chain tries each resolver in order until one knows the member.
func Chain(resolvers ...Resolver) Resolver {
	var c chain
	for _, r := range resolvers {
		if r != nil {
			c = append(c, r)
		}
	}
	return c
}

func (c chain) Resolve(owner, member string, kind MemberKind, args []typesystem.Type) (*Signature, error) {
	var tried []string
	for _, r := range c {
		sig, err := r.Resolve(owner, member, kind, args)
		if err == nil {
			return sig, nil
		}
		if !errors.Is(err, ErrUnknownMember) {
			return nil, err
		}
		tried = append(tried, err.Error())
	}
	if len(tried) == 0 {
		return nil, errors.Wrapf(ErrUnknownMember, "%s", MemberKey(owner, member, kind))
	}
	return nil, errors.Wrap(ErrUnknownMember, strings.Join(tried, "; "))
}

// NewResolver builds the resolver described by cfg: the static table with
// the configured bindings, followed by a go/packages resolver when
// reflective resolution is enabled.
func NewResolver(cfg config.HostConfig) (Resolver, error) {
	table := NewStaticTable()
	for _, b := range cfg.Bindings {
		if err := table.AddBinding(b); err != nil {
			return nil, err
		}
	}
	if !cfg.Reflective {
		return table, nil
	}
	return Chain(table, NewPackagesResolver(cfg.PackagesDir)), nil
}
