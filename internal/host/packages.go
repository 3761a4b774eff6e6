package host

import (
	"go/types"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"

	"github.com/funvibe/miniml/internal/typesystem"
)

// PackagesResolver resolves host members missing from the static table by
// type-checking their Go package with go/packages.
type PackagesResolver struct {
	Dir string
	Env []string

	mu     sync.Mutex
	loaded map[string]*packages.Package
}

func NewPackagesResolver(dir string) *PackagesResolver {
	return &PackagesResolver{
		Dir:    dir,
		Env:    append(os.Environ(), "GOWORK=off"),
		loaded: make(map[string]*packages.Package),
	}
}

func (r *PackagesResolver) load(path string) (*packages.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pkg, ok := r.loaded[path]; ok {
		return pkg, nil
	}
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
		Dir:  r.Dir,
		Env:  r.Env,
	}
	pkgs, err := packages.Load(cfg, path)
	if err != nil {
		return nil, errors.Wrap(err, "loading packages")
	}
	if len(pkgs) != 1 {
		return nil, errors.Errorf("loading %s: got %d packages", path, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		msgs := make([]string, len(pkg.Errors))
		for i, e := range pkg.Errors {
			msgs[i] = e.Msg
		}
		return nil, errors.Wrapf(ErrUnknownMember, "package %s: %s", path, strings.Join(msgs, "; "))
	}
	r.loaded[path] = pkg
	return pkg, nil
}

// splitTypeName splits "net/url.URL" into "net/url" and "URL".
func splitTypeName(name string) (pkgPath, typeName string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

func (r *PackagesResolver) Resolve(owner, member string, kind MemberKind, args []typesystem.Type) (*Signature, error) {
	switch kind {
	case KindFunc, KindField:
		pkg, err := r.load(owner)
		if err != nil {
			return nil, err
		}
		obj := pkg.Types.Scope().Lookup(member)
		if obj == nil || !obj.Exported() {
			return nil, errors.Wrapf(ErrUnknownMember, "%s not found in package %s", member, owner)
		}
		if kind == KindField {
			switch obj.(type) {
			case *types.Var, *types.Const:
			default:
				return nil, errors.Wrapf(ErrUnknownMember, "%s.%s is not a variable or constant", owner, member)
			}
			t, err := fromGoType(obj.Type())
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", owner, member)
			}
			return &Signature{Owner: owner, Member: member, Kind: kind, Result: t}, nil
		}
		fn, ok := obj.(*types.Func)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownMember, "%s.%s is not a function", owner, member)
		}
		return signatureOf(owner, member, kind, fn.Type().(*types.Signature))

	case KindMethod, KindNew:
		pkgPath, typeName, ok := splitTypeName(owner)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownMember, "%s is not a qualified host type", owner)
		}
		pkg, err := r.load(pkgPath)
		if err != nil {
			return nil, err
		}
		tn, ok := pkg.Types.Scope().Lookup(typeName).(*types.TypeName)
		if !ok || !tn.Exported() {
			return nil, errors.Wrapf(ErrUnknownMember, "type %s not found", owner)
		}
		if kind == KindNew {
			return &Signature{Owner: owner, Kind: kind, Result: typesystem.THost{Name: owner}}, nil
		}
		mset := types.NewMethodSet(types.NewPointer(tn.Type()))
		sel := mset.Lookup(pkg.Types, member)
		if sel == nil {
			return nil, errors.Wrapf(ErrUnknownMember, "%s has no method %s", owner, member)
		}
		return signatureOf(owner, member, kind, sel.Obj().(*types.Func).Type().(*types.Signature))
	}
	return nil, errors.Errorf("unsupported member kind %s", kind)
}

func signatureOf(owner, member string, kind MemberKind, sig *types.Signature) (*Signature, error) {
	if sig.TypeParams().Len() > 0 {
		return nil, errors.Errorf("%s.%s: generic host functions are not supported", owner, member)
	}
	if sig.Variadic() {
		return nil, errors.Errorf("%s.%s: variadic host functions are not supported", owner, member)
	}
	out := &Signature{Owner: owner, Member: member, Kind: kind}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		t, err := fromGoType(params.At(i).Type())
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s parameter %d", owner, member, i+1)
		}
		out.Params = append(out.Params, t)
	}
	results := sig.Results()
	n := results.Len()
	if n > 0 && isErrorType(results.At(n-1).Type()) {
		n--
	}
	switch n {
	case 0:
		out.Result = typesystem.Unit
	case 1:
		t, err := fromGoType(results.At(0).Type())
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s result", owner, member)
		}
		out.Result = t
	default:
		return nil, errors.Errorf("%s.%s: functions with %d results are not supported", owner, member, n)
	}
	return out, nil
}

// fromGoType maps a Go type to the miniml type used at the host boundary.
func fromGoType(t types.Type) (typesystem.Type, error) {
	switch t := t.(type) {
	case *types.Basic:
		info := t.Info()
		switch {
		case info&types.IsBoolean != 0:
			return typesystem.Bool, nil
		case info&types.IsInteger != 0:
			return typesystem.Int, nil
		case info&types.IsFloat != 0:
			return typesystem.Double, nil
		case info&types.IsString != 0:
			return typesystem.String, nil
		}
	case *types.Pointer:
		if named, ok := t.Elem().(*types.Named); ok {
			return hostRef(named), nil
		}
	case *types.Named:
		if basic, ok := t.Underlying().(*types.Basic); ok {
			return fromGoType(basic)
		}
		return hostRef(t), nil
	case *types.Slice:
		elem, err := fromGoType(t.Elem())
		if err != nil {
			return nil, err
		}
		return typesystem.TList{Elem: elem}, nil
	}
	return nil, errors.Errorf("unsupported host type %s", t)
}

func hostRef(named *types.Named) typesystem.Type {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return typesystem.THost{Name: obj.Name()}
	}
	return typesystem.THost{Name: obj.Pkg().Path() + "." + obj.Name()}
}

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if ok {
		t = named.Underlying()
	}
	iface, ok := t.(*types.Interface)
	if !ok {
		return false
	}
	return iface.NumMethods() == 1 && iface.Method(0).Name() == "Error"
}
