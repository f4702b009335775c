// Package executor builds isolated script environments and runs rule files in them.
package executor

// Language transforms module source into plain JavaScript the runtime can
// evaluate. Implement this interface to load other source dialects.
type Language interface {
	// Name returns a unique identifier for this language (e.g., "javascript").
	// Used in the transform cache key.
	Name() string

	// Extensions returns the module file extensions, without the dot, that
	// the module map should index for this language.
	Extensions() []string

	// Transform returns CommonJS source for the module at filename.
	Transform(filename string, src []byte) (string, error)
}

// TransformRule applies Language to every module whose path matches Pattern.
type TransformRule struct {
	Pattern  string
	Language Language
}
