package repository

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/mingodad/libnavajo/internal/compress"
	"github.com/mingodad/libnavajo/internal/web"
)

func get(path string) *web.Request {
	return &web.Request{Method: web.MethodGet, MethodName: "GET", Path: path}
}

func TestDynamic(t *testing.T) {
	d := NewDynamic()
	d.AddFunc("/hello", func(*web.Request) (*web.Response, bool) { return FromString("hi") })
	d.AddFunc("empty", func(*web.Request) (*web.Response, bool) { return NoContent() })
	d.AddFunc("decline", func(*web.Request) (*web.Response, bool) { return nil, false })

	tests := []struct {
		path   string
		found  bool
		body   string
		status web.Status
	}{
		{"/hello", true, "hi", web.StatusOK},
		{"hello", true, "hi", web.StatusOK},
		{"//hello", true, "hi", web.StatusOK},
		{"/empty", true, "", web.StatusNoContent},
		{"/decline", false, "", 0},
		{"/missing", false, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, found := d.Serve(get(tt.path))
			if found != tt.found {
				t.Fatalf("Serve(%q) found = %v, want %v", tt.path, found, tt.found)
			}
			if !found {
				return
			}
			if string(resp.Body) != tt.body {
				t.Errorf("body = %q, want %q", resp.Body, tt.body)
			}
			if resp.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode(), tt.status)
			}
		})
	}

	d.Remove("/hello")
	if _, found := d.Serve(get("/hello")); found {
		t.Error("removed page still served")
	}
}

func TestFS(t *testing.T) {
	zipped, err := compress.Encode(compress.Gzip, []byte("body{}"))
	if err != nil {
		t.Fatal(err)
	}
	fsys := fstest.MapFS{
		"index.html":         {Data: []byte("<h1>root</h1>")},
		"docs/index.html":    {Data: []byte("<h1>docs</h1>")},
		"docs/guide.txt":     {Data: []byte("guide")},
		"css/site.css.gz":    {Data: zipped},
		"js/app.js":          {Data: []byte("plain")},
		"js/app.js.gz":       {Data: []byte("ignored")},
		"images/logo.png":    {Data: []byte{0x89, 'P', 'N', 'G'}},
		"nested/deep/a.json": {Data: []byte("{}")},
	}

	tests := []struct {
		name       string
		alias      string
		path       string
		found      bool
		body       string
		mime       string
		compressed bool
	}{
		{"root index", "", "/", true, "<h1>root</h1>", "text/html", false},
		{"directory index", "", "/docs/", true, "<h1>docs</h1>", "text/html", false},
		{"directory without slash", "", "/docs", true, "<h1>docs</h1>", "text/html", false},
		{"file", "", "/docs/guide.txt", true, "guide", "text/plain", false},
		{"gz fallback", "", "/css/site.css", true, string(zipped), "text/css", true},
		{"plain preferred over gz", "", "/js/app.js", true, "plain", "application/javascript", false},
		{"missing", "", "/nope.html", false, "", "", false},
		{"dot dot", "", "/secret/../hidden", false, "", "", false},
		{"alias hit", "static", "/static/docs/guide.txt", true, "guide", "text/plain", false},
		{"alias root", "/static/", "/static", true, "<h1>root</h1>", "text/html", false},
		{"alias miss", "static", "/docs/guide.txt", false, "", "", false},
		{"alias prefix only", "static", "/staticx/index.html", false, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, found := NewFS(tt.alias, fsys).Serve(get(tt.path))
			if found != tt.found {
				t.Fatalf("Serve(%q) found = %v, want %v", tt.path, found, tt.found)
			}
			if !found {
				return
			}
			if string(resp.Body) != tt.body {
				t.Errorf("body = %q, want %q", resp.Body, tt.body)
			}
			if resp.MimeType != tt.mime {
				t.Errorf("MimeType = %q, want %q", resp.MimeType, tt.mime)
			}
			if resp.Compressed != tt.compressed {
				t.Errorf("Compressed = %v, want %v", resp.Compressed, tt.compressed)
			}
		})
	}
}

func TestDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}

	repo, err := Dir("/files/", dir)
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if repo.Alias() != "files" {
		t.Errorf("Alias() = %q, want files", repo.Alias())
	}
	resp, found := repo.Serve(get("/files/hello.txt"))
	if !found || string(resp.Body) != "world" {
		t.Errorf("Serve() = %v, %v, want world", resp, found)
	}

	if _, err := Dir("x", filepath.Join(dir, "missing")); err == nil {
		t.Error("Dir() on a missing directory should fail")
	}
	if _, err := Dir("x", filepath.Join(dir, "hello.txt")); err == nil {
		t.Error("Dir() on a file should fail")
	}
}

func TestProvidersInOrder(t *testing.T) {
	d := NewDynamic()
	d.AddFunc("index.html", func(*web.Request) (*web.Response, bool) { return FromString("dynamic") })
	static := NewFS("", fstest.MapFS{"index.html": {Data: []byte("static")}})

	resp, found := web.Dispatch([]web.Provider{d, static}, get("/index.html"))
	if !found || string(resp.Body) != "dynamic" {
		t.Errorf("first provider should win, got %q", resp.Body)
	}
	resp, found = web.Dispatch([]web.Provider{d, static}, get("/"))
	if !found || string(resp.Body) != "static" {
		t.Errorf("fallthrough to FS failed, got %v", resp)
	}
}
