package hostfunc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"
)

const (
	DefaultFSMaxFileSize   = 10 << 20 // 10MB
	DefaultFSMaxPathLength = 4096

	// sniffSize is enough header for every matcher filetype ships.
	sniffSize = 261
)

var (
	ErrPathNotMounted = errors.New("permission denied: path not in any mount")
	ErrPathEscape     = errors.New("permission denied: path escape attempt")
	ErrFileTooLarge   = errors.New("file exceeds max size")
	ErrPathTooLong    = errors.New("path exceeds max length")
)

// Mount maps a path seen by rule files to a directory on the host.
// Mounts are read-only.
type Mount struct {
	VirtualPath string // Path as seen by rule files (e.g., "/repo")
	HostPath    string // Actual path on host filesystem
}

type FSOption func(*FS)

func WithMaxFileSize(size int64) FSOption {
	return func(f *FS) {
		f.maxFileSize = size
	}
}

func WithMaxPathLength(n int) FSOption {
	return func(f *FS) {
		f.maxPathLength = n
	}
}

// WithFs sets the filesystem mounts are resolved against. Defaults to the OS.
func WithFs(fsys afero.Fs) FSOption {
	return func(f *FS) {
		f.fs = fsys
	}
}

// FS gives rule files read access to mounted host directories.
type FS struct {
	fs            afero.Fs
	mounts        []Mount
	maxFileSize   int64
	maxPathLength int
}

// NewFS creates a filesystem capability with the given mount points.
func NewFS(mounts []Mount, opts ...FSOption) *FS {
	f := &FS{
		fs:            afero.NewOsFs(),
		maxFileSize:   DefaultFSMaxFileSize,
		maxPathLength: DefaultFSMaxPathLength,
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, m := range mounts {
		hp := filepath.Clean(m.HostPath)
		if _, isOs := f.fs.(*afero.OsFs); isOs {
			abs, err := filepath.Abs(hp)
			if err != nil {
				continue
			}
			hp = abs
		}
		f.mounts = append(f.mounts, Mount{
			VirtualPath: "/" + strings.Trim(m.VirtualPath, "/"),
			HostPath:    hp,
		})
	}
	// Longest virtual path wins when mounts nest.
	sort.SliceStable(f.mounts, func(i, j int) bool {
		return len(f.mounts[i].VirtualPath) > len(f.mounts[j].VirtualPath)
	})
	return f
}

// resolve maps a virtual path to a host path.
func (f *FS) resolve(virtualPath string) (string, error) {
	if len(virtualPath) > f.maxPathLength {
		return "", ErrPathTooLong
	}

	vp := filepath.Clean("/" + strings.TrimPrefix(virtualPath, "/"))

	for _, m := range f.mounts {
		if m.VirtualPath != "/" && vp != m.VirtualPath && !strings.HasPrefix(vp, m.VirtualPath+"/") {
			continue
		}

		rel := strings.TrimPrefix(vp, m.VirtualPath)
		hostPath := filepath.Join(m.HostPath, rel)

		if hostPath != m.HostPath && !strings.HasPrefix(hostPath, m.HostPath+string(filepath.Separator)) {
			return "", ErrPathEscape
		}
		return hostPath, nil
	}

	return "", ErrPathNotMounted
}

// ReadFile returns the contents of a file.
func (f *FS) ReadFile(path string) (string, error) {
	hostPath, err := f.resolve(path)
	if err != nil {
		return "", err
	}

	info, err := f.fs.Stat(hostPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read %s: is a directory", path)
	}
	if info.Size() > f.maxFileSize {
		return "", ErrFileTooLarge
	}

	data, err := afero.ReadFile(f.fs, hostPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Exists reports whether path exists. Unmounted paths do not exist.
func (f *FS) Exists(path string) bool {
	hostPath, err := f.resolve(path)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(f.fs, hostPath)
	return err == nil && ok
}

// List returns the entries of a directory, sorted by name.
func (f *FS) List(path string) ([]FSEntry, error) {
	hostPath, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(f.fs, hostPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("directory not found: %s", path)
		}
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	entries := make([]FSEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, FSEntry{
			Name:  info.Name(),
			IsDir: info.IsDir(),
			Size:  info.Size(),
		})
	}
	return entries, nil
}

// Stat returns information about a file or directory.
func (f *FS) Stat(path string) (FSStatResponse, error) {
	hostPath, err := f.resolve(path)
	if err != nil {
		return FSStatResponse{}, err
	}

	info, err := f.fs.Stat(hostPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FSStatResponse{}, fmt.Errorf("file not found: %s", path)
		}
		return FSStatResponse{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return FSStatResponse{
		Name:    info.Name(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime().Unix(),
	}, nil
}

// FileType sniffs the content type of a file from its first bytes. Files
// with no recognised signature, text included, return an empty FSFileType.
func (f *FS) FileType(path string) (FSFileType, error) {
	hostPath, err := f.resolve(path)
	if err != nil {
		return FSFileType{}, err
	}

	file, err := f.fs.Open(hostPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FSFileType{}, fmt.Errorf("file not found: %s", path)
		}
		return FSFileType{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	header := make([]byte, sniffSize)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FSFileType{}, fmt.Errorf("read %s: %w", path, err)
	}
	if n == 0 {
		return FSFileType{}, nil
	}

	kind, err := filetype.Match(header[:n])
	if err != nil || kind == filetype.Unknown {
		return FSFileType{}, nil
	}
	return FSFileType{
		Extension: kind.Extension,
		MIME:      kind.MIME.Value,
		Binary:    true,
	}, nil
}
