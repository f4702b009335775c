package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caffeineduck/rulebox/language/javascript"
)

// Config describes how modules are found, transformed and cached.
type Config struct {
	// Name namespaces the transform cache directory.
	Name string
	// CacheDirectory holds transformed sources when Cache is set.
	CacheDirectory string
	// SetupFiles run in the environment before each rule file.
	SetupFiles []string
	// ModuleFileExtensions lists the loadable extensions, without the dot.
	ModuleFileExtensions []string
	// Transform rules are tried in order; the first matching pattern wins.
	Transform []TransformRule
	// TransformIgnorePatterns exempt matching paths from every transform.
	TransformIgnorePatterns []string
	// Cache enables the on-disk transform cache.
	Cache bool
	// RootDir is scanned for modules and anchors relative paths.
	RootDir string
}

// DefaultConfig returns a config rooted at the current working directory
// with JavaScript as the only transform and caching disabled.
func DefaultConfig() (Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	return Config{
		Name:                 "rulebox",
		CacheDirectory:       os.TempDir(),
		SetupFiles:           []string{},
		ModuleFileExtensions: []string{"js"},
		Transform: []TransformRule{
			{Pattern: "js$", Language: javascript.New()},
		},
		TransformIgnorePatterns: []string{},
		Cache:                   false,
		RootDir:                 wd,
	}, nil
}

// Validate reports the first problem with c. All errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("%w: root directory required", ErrInvalidConfig)
	}
	if len(c.ModuleFileExtensions) == 0 {
		return fmt.Errorf("%w: at least one module file extension required", ErrInvalidConfig)
	}
	for _, ext := range c.ModuleFileExtensions {
		if strings.Trim(ext, ".") == "" {
			return fmt.Errorf("%w: empty module file extension", ErrInvalidConfig)
		}
	}
	if c.Cache && c.CacheDirectory == "" {
		return fmt.Errorf("%w: cache enabled without a cache directory", ErrInvalidConfig)
	}
	for _, rule := range c.Transform {
		if rule.Language == nil {
			return fmt.Errorf("%w: transform %q has no language", ErrInvalidConfig, rule.Pattern)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("%w: transform pattern %q: %v", ErrInvalidConfig, rule.Pattern, err)
		}
	}
	for _, p := range c.TransformIgnorePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: transform ignore pattern %q: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// resolvePath anchors a relative path at RootDir.
func (c Config) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.RootDir, path)
}
