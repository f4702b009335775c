// Package typescript lets rule files be written in TypeScript. Types are
// stripped, not checked.
package typescript

import (
	"github.com/caffeineduck/rulebox/language/internal/esbuild"
	"github.com/evanw/esbuild/pkg/api"
)

// TypeScript transforms .ts rule files into CommonJS.
type TypeScript struct{}

// New returns the TypeScript language.
func New() *TypeScript {
	return &TypeScript{}
}

// Name returns "typescript".
func (t *TypeScript) Name() string {
	return "typescript"
}

// Extensions reports the file extensions handled, without the leading dot.
func (t *TypeScript) Extensions() []string {
	return []string{"ts"}
}

// Transform strips type annotations and rewrites ES module syntax to
// CommonJS. Syntax errors are returned with their file:line:column.
func (t *TypeScript) Transform(filename string, src []byte) (string, error) {
	return esbuild.Transform(api.LoaderTS, filename, src)
}
