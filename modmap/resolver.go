package modmap

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Resolver turns a specifier written in a module into a file path.
type Resolver struct {
	fs         afero.Fs
	modules    *Map
	extensions []string
}

// NewResolver binds a resolver to an index. Files created after the index was
// built are still found through the filesystem.
func NewResolver(fsys afero.Fs, modules *Map, extensions []string) *Resolver {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	return &Resolver{fs: fsys, modules: modules, extensions: exts}
}

// Resolve finds the file for spec as required from a module in dir.
// Relative and absolute specifiers are tried as given, with each extension
// appended, and as a directory index. Bare specifiers are looked up under
// <root>/node_modules.
func (r *Resolver) Resolve(dir, spec string) (string, error) {
	if spec == "" {
		return "", fmt.Errorf("%w: empty specifier", ErrNotFound)
	}

	var base string
	switch {
	case filepath.IsAbs(spec):
		base = filepath.Clean(spec)
	case isRelative(spec):
		base = filepath.Join(dir, spec)
	default:
		base = filepath.Join(r.modules.Root(), "node_modules", spec)
	}

	for _, candidate := range r.candidates(base) {
		if r.isFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %q from %s", ErrNotFound, spec, dir)
}

func (r *Resolver) candidates(base string) []string {
	out := make([]string, 0, 2*len(r.extensions)+1)
	out = append(out, base)
	for _, ext := range r.extensions {
		out = append(out, base+"."+ext)
	}
	for _, ext := range r.extensions {
		out = append(out, filepath.Join(base, "index."+ext))
	}
	return out
}

func (r *Resolver) isFile(path string) bool {
	if _, ok := r.modules.Lookup(path); ok {
		return true
	}
	info, err := r.fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}
