// Package docs serves the PlayKu API reference: the embedded OpenAPI
// document and a Scalar viewer page that renders it.
package docs

import (
	"crypto/sha256"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
)

// SpecPath is where the OpenAPI document is mounted.
const SpecPath = "/api/docs/openapi.yaml"

//go:embed openapi.yaml
var openapiYAML []byte

var specETag = fmt.Sprintf(`"%x"`, sha256.Sum256(openapiYAML))

// The viewer loads its bundle from jsDelivr and may be opened inside the
// Shopify admin frame.
var viewerPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'",
	"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'",
	"font-src 'self' https://cdn.jsdelivr.net data:",
	"img-src 'self' data:",
	"connect-src 'self'",
	"frame-ancestors 'self' https://*.myshopify.com https://admin.shopify.com",
}, "; ") + ";"

// HandleSpec serves the OpenAPI document. Clients revalidate with the ETag.
func HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", specETag)
	if r.Header.Get("If-None-Match") == specETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapiYAML)
}

func HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy", viewerPolicy)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(viewerPage))
}

const viewerPage = `<!DOCTYPE html>
<html lang="en"><head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>PlayKu API Reference</title>
</head><body>
  <script id="api-reference" data-url="` + SpecPath + `" data-configuration='{"hideClientButton":true}'></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`
