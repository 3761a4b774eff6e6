package host

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Registry links host members to their Go implementations at run time.
// Values cross the boundary as int64, float64, bool, string, nil (unit) or
// arbitrary host objects.
type Registry struct {
	funcs  map[string]reflect.Value
	fields map[string]any
	types  map[string]reflect.Type
}

// NewRegistry returns a registry holding the well-known implementations.
func NewRegistry() *Registry {
	r := &Registry{
		funcs:  make(map[string]reflect.Value),
		fields: make(map[string]any),
		types:  make(map[string]reflect.Type),
	}
	r.RegisterType("strings.Builder", reflect.TypeOf(strings.Builder{}))
	for _, wk := range wellKnownMembers {
		switch wk.sig.Kind {
		case KindFunc, KindMethod:
			if wk.impl != nil {
				r.funcs[wk.sig.Key()] = reflect.ValueOf(wk.impl)
			}
		case KindField:
			r.fields[wk.sig.Key()] = wk.impl
		}
	}
	return r
}

// RegisterFunc links owner.member to fn. Methods of non-host receivers (such
// as string) are registered the same way with the receiver as the first
// parameter.
func (r *Registry) RegisterFunc(owner, member string, fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return errors.Errorf("host %s.%s: %T is not a function", owner, member, fn)
	}
	r.funcs[owner+"."+member] = v
	return nil
}

func (r *Registry) RegisterField(owner, name string, value any) {
	r.fields[owner+"."+name] = value
}

// RegisterType makes "new name" allocate a zero value of t.
func (r *Registry) RegisterType(name string, t reflect.Type) {
	r.types[name] = t
}

// Call invokes a function or method registered under key.
func (r *Registry) Call(key string, args []any) (any, error) {
	fn, ok := r.funcs[key]
	if !ok {
		return nil, errors.Errorf("host function %s is not linked", key)
	}
	return invoke(key, fn, args)
}

// CallMethod invokes member on a host receiver. A registered function for
// owner.member takes precedence over the receiver's Go method set.
func (r *Registry) CallMethod(owner string, recv any, member string, args []any) (any, error) {
	key := owner + "." + member
	if fn, ok := r.funcs[key]; ok {
		return invoke(key, fn, append([]any{recv}, args...))
	}
	rv := reflect.ValueOf(recv)
	if !rv.IsValid() {
		return nil, errors.Errorf("host method %s called on unit", key)
	}
	m := rv.MethodByName(member)
	if !m.IsValid() {
		return nil, errors.Errorf("host value %T has no method %s", recv, member)
	}
	return invoke(key, m, args)
}

// Field reads a registered package-level value.
func (r *Registry) Field(key string) (any, error) {
	v, ok := r.fields[key]
	if !ok {
		return nil, errors.Errorf("host field %s is not linked", key)
	}
	return normalize(reflect.ValueOf(v)), nil
}

// New allocates a zero value of a registered host type and returns a pointer
// to it.
func (r *Registry) New(name string) (any, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, errors.Errorf("host type %s is not linked", name)
	}
	return reflect.New(t).Interface(), nil
}

func invoke(key string, fn reflect.Value, args []any) (result any, err error) {
	ft := fn.Type()
	if ft.IsVariadic() || ft.NumIn() != len(args) {
		return nil, errors.Errorf("host %s takes %d arguments, got %d", key, ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convertArg(a, ft.In(i))
		if err != nil {
			return nil, errors.Wrapf(err, "host %s argument %d", key, i+1)
		}
		in[i] = v
	}
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("host %s panicked: %v", key, p)
		}
	}()
	out := fn.Call(in)
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if e, _ := out[n-1].Interface().(error); e != nil {
			return nil, errors.Wrapf(e, "host %s", key)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return normalize(out[0]), nil
	}
	return nil, errors.Errorf("host %s returns %d values", key, len(out))
}

func convertArg(a any, want reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(want), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if v.Type().ConvertibleTo(want) {
		switch v.Kind() {
		case reflect.Int64, reflect.Float64, reflect.Bool, reflect.String:
			return v.Convert(want), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, want)
}

// normalize widens Go scalars to the boundary representation.
func normalize(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	case reflect.Invalid:
		return nil
	}
	return v.Interface()
}
