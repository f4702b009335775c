package javascript

import (
	"github.com/caffeineduck/rulebox/language/internal/esbuild"
	"github.com/evanw/esbuild/pkg/api"
)

// JavaScript implements the executor.Language interface for JavaScript rule files.
type JavaScript struct{}

// New returns a JavaScript language adapter.
func New() *JavaScript {
	return &JavaScript{}
}

// Name returns "javascript".
func (j *JavaScript) Name() string {
	return "javascript"
}

// Extensions returns the module file extensions this language loads.
func (j *JavaScript) Extensions() []string {
	return []string{"js"}
}

// Transform lowers modern syntax and rewrites ES module syntax to CommonJS.
func (j *JavaScript) Transform(filename string, src []byte) (string, error) {
	return esbuild.Transform(api.LoaderJS, filename, src)
}
