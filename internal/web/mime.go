package web

import (
	"path"
	"strings"
)

const defaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	"7z":    "application/x-7z-compressed",
	"atom":  "application/atom+xml",
	"bin":   "application/octet-stream",
	"bmp":   "image/x-ms-bmp",
	"css":   "text/css",
	"csv":   "text/csv",
	"doc":   "application/msword",
	"eot":   "application/vnd.ms-fontobject",
	"gif":   "image/gif",
	"gz":    "application/gzip",
	"htm":   "text/html",
	"html":  "text/html",
	"ico":   "image/x-icon",
	"jar":   "application/java-archive",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"js":    "application/javascript",
	"json":  "application/json",
	"m4a":   "audio/x-m4a",
	"map":   "application/json",
	"mov":   "video/quicktime",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"mpeg":  "video/mpeg",
	"mpg":   "video/mpeg",
	"otf":   "font/otf",
	"pdf":   "application/pdf",
	"png":   "image/png",
	"ppt":   "application/vnd.ms-powerpoint",
	"ps":    "application/postscript",
	"rar":   "application/x-rar-compressed",
	"rss":   "application/rss+xml",
	"rtf":   "application/rtf",
	"svg":   "image/svg+xml",
	"ttf":   "font/ttf",
	"txt":   "text/plain",
	"wasm":  "application/wasm",
	"webm":  "video/webm",
	"webp":  "image/webp",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"xls":   "application/vnd.ms-excel",
	"xml":   "text/xml",
	"zip":   "application/zip",
}

// MimeType returns the content type for a file name based on its extension.
// Unknown extensions map to application/octet-stream.
func MimeType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if m, ok := mimeTypes[ext]; ok {
		return m
	}
	return defaultMimeType
}

// contentType adds the utf-8 charset to textual types.
func contentType(mime string) string {
	if strings.Contains(mime, "charset=") {
		return mime
	}
	if strings.HasPrefix(mime, "text/") || mime == "application/javascript" || mime == "application/json" {
		return mime + "; charset=utf-8"
	}
	return mime
}
