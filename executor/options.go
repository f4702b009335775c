package executor

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Option configures an Environment at creation time.
type Option func(*environmentConfig)

type environmentConfig struct {
	config  Config
	fs      afero.Fs
	rewrite bool
	timeout time.Duration
}

// WithRootDir sets the module root. Relative script paths are resolved
// against it.
func WithRootDir(dir string) Option {
	return func(c *environmentConfig) {
		c.config.RootDir = dir
	}
}

// WithFs sets the filesystem scripts and modules are read from.
// Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *environmentConfig) {
		c.fs = fs
	}
}

// WithLanguage adds a transform for files with the language's extensions
// and makes those extensions loadable.
//
// Examples:
//
//	executor.NewEnvironment(ctx, bundle, executor.WithLanguage(typescript.New()))
func WithLanguage(lang Language) Option {
	return func(c *environmentConfig) {
		for _, ext := range lang.Extensions() {
			ext = strings.TrimPrefix(ext, ".")
			if !containsString(c.config.ModuleFileExtensions, ext) {
				c.config.ModuleFileExtensions = append(c.config.ModuleFileExtensions, ext)
			}
			c.config.Transform = append(c.config.Transform, TransformRule{
				Pattern:  `\.` + ext + `$`,
				Language: lang,
			})
		}
	}
}

// WithSetupFiles sets scripts evaluated before every rule file.
func WithSetupFiles(paths ...string) Option {
	return func(c *environmentConfig) {
		c.config.SetupFiles = append(c.config.SetupFiles, paths...)
	}
}

// WithCache enables the transform cache. Optionally provide a directory;
// otherwise the config's CacheDirectory (the OS temp dir) is used.
func WithCache(dir ...string) Option {
	return func(c *environmentConfig) {
		c.config.Cache = true
		if len(dir) > 0 && dir[0] != "" {
			c.config.CacheDirectory = filepath.Clean(dir[0])
		}
	}
}

// WithTransformIgnorePatterns exempts matching module paths from transforms.
func WithTransformIgnorePatterns(patterns ...string) Option {
	return func(c *environmentConfig) {
		c.config.TransformIgnorePatterns = append(c.config.TransformIgnorePatterns, patterns...)
	}
}

// WithSourceRewrite writes the cleaned rule file back to disk before loading
// it. Off by default: the cleaned text is only used in memory.
func WithSourceRewrite(enabled bool) Option {
	return func(c *environmentConfig) {
		c.rewrite = enabled
	}
}

// WithTimeout bounds each Run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *environmentConfig) {
		c.timeout = d
	}
}

// WithConfig replaces the whole base config. Options after it still apply.
func WithConfig(cfg Config) Option {
	return func(c *environmentConfig) {
		c.config = cfg
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
