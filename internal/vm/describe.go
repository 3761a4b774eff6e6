package vm

import (
	"sort"

	"github.com/funvibe/miniml/internal/analyzer"
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/iface"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Describe builds the interface descriptor of a compiled module: every
// top-level function at its generalized type, every emitted specialization
// at its concrete type, every top-level value, and every constructor of the
// module's sum types under its factory name, in tag order.
func Describe(res *analyzer.Result, module *Artifact) (*iface.Interface, error) {
	out := &iface.Interface{Module: module.Name}
	for _, name := range res.Order {
		if t, ok := res.Values[name]; ok {
			out.Add(name, t)
			continue
		}
		fn := res.Functions[name]
		out.Add(name, fn.Type)
		if !fn.Polymorphic() {
			continue
		}
		for _, m := range module.Methods {
			if m.Function != name || m.Name == name {
				continue
			}
			t, err := typesystem.ParseSignature(m.Signature)
			if err != nil {
				return nil, diagnostics.Internalf("signature of %s: %v", m.Name, err)
			}
			out.Add(m.Name, t)
		}
	}
	sums := make([]string, 0, len(res.SumTypes))
	for name := range res.SumTypes {
		if name != config.ResultTypeName {
			sums = append(sums, name)
		}
	}
	sort.Strings(sums)
	for _, name := range sums {
		for _, ctor := range res.SumTypes[name].Ctors {
			out.Add(config.CtorFactoryPrefix+ctor, res.Constructors[ctor].Type)
		}
	}
	return out, nil
}
