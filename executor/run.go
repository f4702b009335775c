package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// RunScript runs the rule file at path in env. See Environment.Run.
func RunScript(ctx context.Context, path string, env *Environment) (any, error) {
	return env.Run(ctx, path)
}

// Run loads the rule file at path once in the environment and returns the
// bundle's results member.
//
// Self-imports of the capability module are commented out before loading.
// The file on disk is only rewritten when WithSourceRewrite(true) was given.
//
// When the script throws, the results written before the throw are returned
// along with the script's error, unmodified. Source the language transform
// rejects (syntax errors included) fails with the transform's own error,
// which names the file, line and column.
//
// Context cancellation and the environment timeout interrupt the script.
// Capabilities bound with hostfunc.BindContext see the same deadline, so a
// blocked HTTP call is aborted as well.
func (e *Environment) Run(ctx context.Context, path string) (any, error) {
	if e.closed.Load() {
		return nil, ErrEnvironmentClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return nil, ErrEnvironmentClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = e.cfg.resolvePath(path)
	logger := log.Ctx(ctx).With().
		Str("environment", e.ID).
		Str("script", path).
		Logger()

	src, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	cleaned := CleanScriptSource(string(src))
	if e.rewrite && cleaned != string(src) {
		if err := afero.WriteFile(e.fs, path, []byte(cleaned), 0o644); err != nil {
			return nil, fmt.Errorf("rewrite script %s: %w", path, err)
		}
		logger.Debug().Msg("self-import commented out on disk")
	}

	runCtx, cancel := e.runContext(ctx)
	defer cancel()
	e.runCtx = logger.WithContext(runCtx)
	defer func() { e.runCtx = nil }()
	stop := e.watch(runCtx)
	defer stop()

	e.loader.reset()
	start := time.Now()

	for _, setup := range e.cfg.SetupFiles {
		setup = e.cfg.resolvePath(setup)
		setupSrc, err := afero.ReadFile(e.fs, setup)
		if err != nil {
			return nil, fmt.Errorf("read setup file %s: %w", setup, err)
		}
		if _, err := e.loader.RequireModule(setup, setupSrc); err != nil {
			logger.Debug().Err(err).Str("setup", setup).Msg("setup file failed")
			return e.bundle.Results(), err
		}
	}

	_, err = e.loader.RequireModule(path, []byte(cleaned))

	logger.Debug().
		Dur("duration", time.Since(start)).
		Bool("failed", err != nil).
		Msg("script finished")

	return e.bundle.Results(), err
}

// runContext bounds ctx by the environment timeout, if any.
func (e *Environment) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// watch interrupts the runtime when ctx is done. The returned function
// stops watching and clears any interrupt.
func (e *Environment) watch(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		e.vm.ClearInterrupt()
	}
}
