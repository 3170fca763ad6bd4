package site

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// FS returns an http.FileSystem for the embedded landing page.
func FS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// "static" is embedded at build time, so Sub cannot fail here.
		return http.FS(staticFS)
	}
	return http.FS(sub)
}
