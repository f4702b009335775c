package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/caffeineduck/rulebox/hostfunc"
	"github.com/caffeineduck/rulebox/modmap"
)

// Environment is an isolated script scope with a capability bundle bound as
// globals and a module loader configured against it.
//
// Runs on one Environment are serialized. The runtime is not safe for use
// from more than one goroutine, so Runtime must not be touched while a Run
// is in flight.
type Environment struct {
	ID string

	cfg     Config
	bundle  *hostfunc.Bundle
	vm      *goja.Runtime
	loader  *ModuleLoader
	modules *modmap.Map
	fs      afero.Fs
	rewrite bool
	timeout time.Duration

	mu      sync.Mutex
	baseCtx context.Context
	runCtx  context.Context
	closed  atomic.Bool
}

// NewEnvironment builds an isolated scope holding every bundle member as a
// global and scans the module root. It fails with ErrInvalidBundle for a
// nil bundle or a member name that is not an identifier, and with an I/O
// error when the root cannot be scanned.
//
// Members that block on I/O (such as hostfunc.HTTP) are bound to the
// context of whichever run calls them.
func NewEnvironment(ctx context.Context, bundle *hostfunc.Bundle, opts ...Option) (*Environment, error) {
	if bundle == nil {
		return nil, fmt.Errorf("%w: bundle is nil", ErrInvalidBundle)
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	base, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	ec := &environmentConfig{config: base}
	for _, opt := range opts {
		opt(ec)
	}
	if ec.fs == nil {
		ec.fs = afero.NewOsFs()
	}
	if err := ec.config.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate environment id: %w", err)
	}

	env := &Environment{
		ID:      id.String(),
		cfg:     ec.config,
		bundle:  bundle,
		fs:      ec.fs,
		rewrite: ec.rewrite,
		timeout: ec.timeout,
		baseCtx: context.WithoutCancel(ctx),
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	bindConsole(vm, env.currentContext)

	for _, name := range bundle.Keys() {
		value, _ := bundle.Get(name)
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("%w: bind %q: %v", ErrInvalidBundle, name, err)
		}
		hostfunc.BindContext(value, env.currentContext)
	}
	env.vm = vm

	modules, err := modmap.Build(ctx, ec.fs, modmap.Options{
		Root:       ec.config.RootDir,
		Extensions: ec.config.ModuleFileExtensions,
	})
	if err != nil {
		return nil, err
	}
	env.modules = modules

	resolver := modmap.NewResolver(ec.fs, modules, ec.config.ModuleFileExtensions)
	loader, err := newModuleLoader(ec.config, vm, ec.fs, resolver)
	if err != nil {
		return nil, err
	}
	env.loader = loader

	log.Ctx(ctx).Debug().
		Str("environment", env.ID).
		Str("root", ec.config.RootDir).
		Int("globals", bundle.Len()).
		Int("modules", modules.Len()).
		Msg("environment ready")

	return env, nil
}

// Bundle returns the bundle the environment was built from.
func (e *Environment) Bundle() *hostfunc.Bundle {
	return e.bundle
}

// Runtime returns the isolated scope.
func (e *Environment) Runtime() *goja.Runtime {
	return e.vm
}

// Loader returns the module loader bound to the runtime.
func (e *Environment) Loader() *ModuleLoader {
	return e.loader
}

// Modules returns the module map scanned from the root directory.
func (e *Environment) Modules() *modmap.Map {
	return e.modules
}

// Config returns the configuration the environment was built with.
func (e *Environment) Config() Config {
	return e.cfg
}

// ClearCache removes every transform cache entry written by this
// environment's config. It is a no-op when caching is disabled.
func (e *Environment) ClearCache() error {
	if e.loader.cache == nil {
		return nil
	}
	return e.loader.cache.clear()
}

// Close marks the environment unusable. Later runs fail with
// ErrEnvironmentClosed. Close waits for an in-flight run to finish.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed.Store(true)
	return nil
}

// currentContext is the context of the run in progress, or the
// construction context between runs.
func (e *Environment) currentContext() context.Context {
	if e.runCtx == nil {
		return e.baseCtx
	}
	return e.runCtx
}
