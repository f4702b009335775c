package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// bindConsole installs a console object whose methods write to the logger
// carried by the context ctxFn returns at call time.
func bindConsole(vm *goja.Runtime, ctxFn func() context.Context) {
	console := vm.NewObject()

	levels := map[string]zerolog.Level{
		"log":   zerolog.InfoLevel,
		"info":  zerolog.InfoLevel,
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for name, level := range levels {
		_ = console.Set(name, func(call goja.FunctionCall) goja.Value {
			log.Ctx(ctxFn()).WithLevel(level).
				Str("source", "script").
				Msg(formatArgs(call.Arguments))
			return goja.Undefined()
		})
	}

	_ = vm.Set("console", console)
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		switch v := arg.Export().(type) {
		case string:
			parts[i] = v
		case nil:
			parts[i] = arg.String()
		default:
			parts[i] = fmt.Sprintf("%v", v)
		}
	}
	return strings.Join(parts, " ")
}
