// Package modmap indexes the loadable modules under a root directory and
// resolves module specifiers against that index.
package modmap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when a specifier resolves to no file.
var ErrNotFound = errors.New("module not found")

// File is one indexed module.
type File struct {
	Path string // absolute path
	Rel  string // path relative to the map root, slash separated
	Ext  string // extension without the dot
	Size int64
}

// Options controls a scan.
type Options struct {
	Root       string
	Extensions []string
	// SkipDirs are directory names never descended into. Dot-directories are
	// always skipped.
	SkipDirs []string
}

// DefaultSkipDirs is used when Options.SkipDirs is nil.
var DefaultSkipDirs = []string{"node_modules"}

// Map is the result of scanning a module root.
type Map struct {
	root  string
	files map[string]File
}

// Build walks opts.Root sequentially and records every file whose extension
// is in opts.Extensions. Failure to read the root is returned wrapped.
func Build(ctx context.Context, fsys afero.Fs, opts Options) (*Map, error) {
	if opts.Root == "" {
		return nil, errors.New("scan module root: root required")
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[strings.TrimPrefix(ext, ".")] = true
	}
	skip := opts.SkipDirs
	if skip == nil {
		skip = DefaultSkipDirs
	}

	root := filepath.Clean(opts.Root)
	m := &Map{root: root, files: make(map[string]File)}

	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if info.IsDir() {
			if path == root {
				return nil
			}
			name := info.Name()
			if strings.HasPrefix(name, ".") || contains(skip, name) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if !exts[ext] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		m.files[path] = File{
			Path: path,
			Rel:  filepath.ToSlash(rel),
			Ext:  ext,
			Size: info.Size(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan module root %s: %w", root, err)
	}

	return m, nil
}

func (m *Map) Root() string {
	return m.root
}

func (m *Map) Len() int {
	return len(m.files)
}

// Lookup returns the indexed file at path.
func (m *Map) Lookup(path string) (File, bool) {
	f, ok := m.files[filepath.Clean(path)]
	return f, ok
}

// Files returns the indexed files sorted by relative path.
func (m *Map) Files() []File {
	files := make([]File, 0, len(m.files))
	for _, f := range m.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Rel < files[j].Rel
	})
	return files
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
