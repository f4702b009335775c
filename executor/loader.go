package executor

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/dop251/goja"
	"github.com/spf13/afero"

	"github.com/caffeineduck/rulebox/modmap"
)

const (
	moduleHeader = "(function (exports, require, module, __filename, __dirname) {"
	moduleFooter = "\n})"
)

type compiledRule struct {
	re   *regexp.Regexp
	lang Language
}

// ModuleLoader resolves, transforms and evaluates CommonJS modules inside
// one runtime. Modules are evaluated once per run: the registry is reset by
// the environment before each top-level load.
type ModuleLoader struct {
	vm       *goja.Runtime
	fs       afero.Fs
	resolver *modmap.Resolver
	rules    []compiledRule
	ignore   []*regexp.Regexp
	cache    *transformCache

	registry map[string]*goja.Object
}

func newModuleLoader(cfg Config, vm *goja.Runtime, fsys afero.Fs, resolver *modmap.Resolver) (*ModuleLoader, error) {
	l := &ModuleLoader{
		vm:       vm,
		fs:       fsys,
		resolver: resolver,
		registry: make(map[string]*goja.Object),
	}

	for _, rule := range cfg.Transform {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: transform pattern %q: %v", ErrInvalidConfig, rule.Pattern, err)
		}
		l.rules = append(l.rules, compiledRule{re: re, lang: rule.Language})
	}
	for _, p := range cfg.TransformIgnorePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: transform ignore pattern %q: %v", ErrInvalidConfig, p, err)
		}
		l.ignore = append(l.ignore, re)
	}
	if cfg.Cache {
		l.cache = newTransformCache(fsys, cfg)
	}
	return l, nil
}

// RequireModule evaluates source as the module at path and returns its
// exports. Errors thrown by the module are returned unmodified.
func (l *ModuleLoader) RequireModule(path string, source []byte) (goja.Value, error) {
	return l.load(filepath.Clean(path), source)
}

// Loaded reports whether path has been evaluated during the current run.
func (l *ModuleLoader) Loaded(path string) bool {
	_, ok := l.registry[filepath.Clean(path)]
	return ok
}

func (l *ModuleLoader) reset() {
	l.registry = make(map[string]*goja.Object)
}

func (l *ModuleLoader) load(path string, source []byte) (goja.Value, error) {
	// A module that is still evaluating returns its partial exports, which
	// is how require cycles terminate.
	if module, ok := l.registry[path]; ok {
		return module.Get("exports"), nil
	}

	code, err := l.transform(path, source)
	if err != nil {
		return nil, err
	}

	prog, err := goja.Compile(path, moduleHeader+code+moduleFooter, false)
	if err != nil {
		return nil, err
	}
	wrapper, err := l.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("module %s: wrapper is not a function", path)
	}

	dir := filepath.Dir(path)
	exports := l.vm.NewObject()
	module := l.vm.NewObject()
	_ = module.Set("id", path)
	_ = module.Set("filename", path)
	_ = module.Set("exports", exports)
	l.registry[path] = module

	_, err = fn(exports, exports, l.vm.ToValue(l.requireFunc(dir)), module, l.vm.ToValue(path), l.vm.ToValue(dir))
	if err != nil {
		delete(l.registry, path)
		return nil, err
	}
	return module.Get("exports"), nil
}

// transform applies the first matching rule unless an ignore pattern matches.
func (l *ModuleLoader) transform(path string, source []byte) (string, error) {
	for _, re := range l.ignore {
		if re.MatchString(path) {
			return string(source), nil
		}
	}

	for _, rule := range l.rules {
		if !rule.re.MatchString(path) {
			continue
		}

		var key string
		if l.cache != nil {
			key = cacheKey(rule.lang, path, source)
			if code, ok := l.cache.get(key); ok {
				return code, nil
			}
		}

		code, err := rule.lang.Transform(path, source)
		if err != nil {
			return "", err
		}

		if l.cache != nil {
			// A failed cache write only costs a future re-transform.
			_ = l.cache.put(key, code)
		}
		return code, nil
	}

	return string(source), nil
}

// requireFunc returns the require function handed to modules in dir.
func (l *ModuleLoader) requireFunc(dir string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0)
		if goja.IsUndefined(spec) || goja.IsNull(spec) {
			panic(l.vm.NewTypeError("require: module name required"))
		}

		path, err := l.resolver.Resolve(dir, spec.String())
		if err != nil {
			panic(l.vm.NewGoError(err))
		}

		src, err := afero.ReadFile(l.fs, path)
		if err != nil {
			panic(l.vm.NewGoError(fmt.Errorf("read module %s: %w", path, err)))
		}

		exports, err := l.load(path, src)
		if err != nil {
			var ex *goja.Exception
			if errors.As(err, &ex) {
				panic(ex)
			}
			panic(l.vm.NewGoError(err))
		}
		return exports
	}
}
