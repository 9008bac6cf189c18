package sandbox

import (
	"fmt"
	"path"
	"strings"

	"github.com/dop251/goja"
)

// requireFrom returns a CommonJS require resolving relative names against
// the module base.
func (r *Runtime) requireFrom(base string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := resolveModule(base, call.Argument(0).String())
		v, err := r.load(name)
		if err != nil {
			if ex, ok := err.(*goja.Exception); ok {
				panic(ex.Value())
			}
			panic(r.vm.NewGoError(err))
		}
		return v
	}
}

func resolveModule(base, name string) string {
	name = strings.TrimSuffix(name, ".js")
	if strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		return path.Join(path.Dir(base), name)
	}
	return name
}

func (r *Runtime) load(name string) (goja.Value, error) {
	if v, ok := r.modules[name]; ok {
		return v, nil
	}
	src, ok := r.pkgs.Module(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoModule, name)
	}

	wrapped := "(function (exports, require, module) {" + src + "\n})"
	prg, err := goja.Compile(name+".js", wrapped, false)
	if err != nil {
		return nil, err
	}
	fnVal, err := r.vm.RunProgram(prg)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("module %s did not compile to a function", name)
	}

	module := r.vm.NewObject()
	exports := r.vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	// Cycles see the partially built exports.
	r.modules[name] = exports

	if _, err := fn(goja.Undefined(), exports, r.vm.ToValue(r.requireFrom(name)), module); err != nil {
		delete(r.modules, name)
		return nil, err
	}
	v := module.Get("exports")
	r.modules[name] = v
	return v, nil
}
