package repository

import (
	"strings"
	"sync"

	"github.com/mingodad/libnavajo/internal/web"
)

// Page computes a response. found=false lets the next provider try.
type Page interface {
	ServePage(req *web.Request) (resp *web.Response, found bool)
}

// PageFunc adapts a function to Page.
type PageFunc func(req *web.Request) (*web.Response, bool)

// ServePage calls f.
func (f PageFunc) ServePage(req *web.Request) (*web.Response, bool) { return f(req) }

// FromString answers with s. The MIME type follows the request path.
func FromString(s string) (*web.Response, bool) {
	return &web.Response{Body: []byte(s)}, true
}

// NoContent answers with an empty body (204).
func NoContent() (*web.Response, bool) {
	return &web.Response{}, true
}

// Dynamic routes exact paths to pages. Paths are matched without their
// leading slashes.
type Dynamic struct {
	mu    sync.RWMutex
	pages map[string]Page
}

// NewDynamic creates an empty repository.
func NewDynamic() *Dynamic {
	return &Dynamic{pages: make(map[string]Page)}
}

// Add registers p under path, replacing any previous page.
func (d *Dynamic) Add(path string, p Page) {
	d.mu.Lock()
	d.pages[strings.TrimLeft(path, "/")] = p
	d.mu.Unlock()
}

// AddFunc registers a function page.
func (d *Dynamic) AddFunc(path string, f func(req *web.Request) (*web.Response, bool)) {
	d.Add(path, PageFunc(f))
}

// Remove unregisters path.
func (d *Dynamic) Remove(path string) {
	d.mu.Lock()
	delete(d.pages, strings.TrimLeft(path, "/"))
	d.mu.Unlock()
}

// Serve implements web.Provider. The page runs outside the lock.
func (d *Dynamic) Serve(req *web.Request) (*web.Response, bool) {
	d.mu.RLock()
	p, ok := d.pages[strings.TrimLeft(req.Path, "/")]
	d.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.ServePage(req)
}
