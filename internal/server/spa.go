package server

import (
	"io/fs"
	"net/http"
	"strings"
)

// adminFileServer serves the embedded admin app. Unknown paths fall back to
// index.html so client-side routes survive a reload inside the Shopify
// admin iframe.
type adminFileServer struct {
	fileServer http.Handler
	fileSystem fs.FS
}

func newAdminFileServer(fsys fs.FS) *adminFileServer {
	return &adminFileServer{
		fileServer: http.FileServer(http.FS(fsys)),
		fileSystem: fsys,
	}
}

func (s *adminFileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		notFoundJSON(w, r)
		return
	}

	p := strings.TrimPrefix(r.URL.Path, "/")
	if p == "" {
		p = "index.html"
	}

	if info, err := fs.Stat(s.fileSystem, p); err != nil || info.IsDir() {
		p = "index.html"
		r.URL.Path = "/"
	}

	if p == "index.html" {
		// The shell must never be cached; it references hashed assets.
		w.Header().Set("Cache-Control", "no-cache")
	} else if strings.HasPrefix(p, "assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	s.fileServer.ServeHTTP(w, r)
}
