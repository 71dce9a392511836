package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
	"github.com/mingodad/libnavajo/internal/web"
)

// IndexFile is served for directory paths.
const IndexFile = "index.html"

// gzSuffix marks a precompressed variant of a file.
const gzSuffix = ".gz"

// FS serves files from fsys under an URL alias. When name is missing but
// name.gz exists, the compressed file is served and marked as such.
type FS struct {
	alias string
	fsys  fs.FS
}

// NewFS serves fsys under alias ("" serves from the root).
func NewFS(alias string, fsys fs.FS) *FS {
	return &FS{alias: strings.Trim(alias, "/"), fsys: fsys}
}

// Dir serves a local directory under alias.
func Dir(alias, dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("repository directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository directory %s is not a directory", abs)
	}
	logging.Info("Local repository added",
		zap.String("alias", "/"+strings.Trim(alias, "/")),
		zap.String("dir", abs),
	)
	return NewFS(alias, os.DirFS(abs)), nil
}

// Alias returns the URL prefix served, without slashes.
func (f *FS) Alias() string { return f.alias }

// Serve implements web.Provider.
func (f *FS) Serve(req *web.Request) (*web.Response, bool) {
	name, ok := f.resolve(req.Path)
	if !ok {
		return nil, false
	}

	if info, err := fs.Stat(f.fsys, name); err == nil && info.IsDir() {
		name = path.Join(name, IndexFile)
	}

	data, err := fs.ReadFile(f.fsys, name)
	if err == nil {
		return &web.Response{Body: data, MimeType: web.MimeType(name)}, true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		logging.Append(logging.SeverityError, "Repository read failed", name+": "+err.Error())
		return nil, false
	}

	data, err = fs.ReadFile(f.fsys, name+gzSuffix)
	if err != nil {
		return nil, false
	}
	return &web.Response{Body: data, MimeType: web.MimeType(name), Compressed: true}, true
}

// resolve maps a request path to a name inside fsys.
func (f *FS) resolve(urlPath string) (string, bool) {
	name := strings.TrimLeft(urlPath, "/")
	if f.alias != "" {
		if name != f.alias && !strings.HasPrefix(name, f.alias+"/") {
			return "", false
		}
		name = strings.TrimPrefix(name[len(f.alias):], "/")
	}
	if name == "" || strings.HasSuffix(name, "/") {
		name += IndexFile
	}
	if !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}
