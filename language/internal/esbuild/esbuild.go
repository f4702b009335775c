// Package esbuild runs source through esbuild's transform API, producing
// CommonJS the module loader can evaluate.
package esbuild

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Target is the syntax level goja runs without further lowering.
const Target = api.ES2017

// Transform compiles src with the given loader. All esbuild errors are
// reported in one error, each prefixed with file:line:column.
func Transform(loader api.Loader, filename string, src []byte) (string, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Target:     Target,
		Sourcefile: filename,
		LogLevel:   api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		return "", errors.New(formatMessages(result.Errors))
	}
	return string(result.Code), nil
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location == nil {
			parts = append(parts, m.Text)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
	}
	return strings.Join(parts, "; ")
}
