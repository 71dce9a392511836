// Package repository provides the content providers shipped with the
// server: Dynamic maps paths to pages computed per request, FS serves files
// from any fs.FS (a local directory or embedded assets).
package repository
