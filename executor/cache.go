package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// transformCache stores transformed module source on disk, keyed by the
// language, the module path and the untransformed source.
type transformCache struct {
	fs  afero.Fs
	dir string
}

func newTransformCache(fsys afero.Fs, cfg Config) *transformCache {
	return &transformCache{
		fs:  fsys,
		dir: filepath.Join(cfg.CacheDirectory, cfg.Name),
	}
}

func cacheKey(lang Language, path string, src []byte) string {
	h := sha256.New()
	h.Write([]byte(lang.Name()))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(src)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *transformCache) get(key string) (string, bool) {
	data, err := afero.ReadFile(c.fs, c.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *transformCache) put(key, code string) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	// Write then rename so a concurrent reader never sees a partial entry.
	tmp := c.path(key) + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := c.fs.Rename(tmp, c.path(key)); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

func (c *transformCache) path(key string) string {
	return filepath.Join(c.dir, key+".js")
}

// clear removes every cached entry.
func (c *transformCache) clear() error {
	if err := c.fs.RemoveAll(c.dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
