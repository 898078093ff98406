package server

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/klauspost/compress/gzhttp"
)

const wasmFile = "playku.wasm"

var loaderTemplate = template.Must(template.New("playku.js").Parse(`(function () {
  if (window.PlayKu || window.__playkuLoading) return;
  window.__playkuLoading = true;

  var cfg = window.PlayKuConfig = Object.assign({
    proxyPath: "{{js .ProxyPath}}",
    debug: /[?&]playku_debug=1/.test(window.location.search)
  }, window.PlayKuConfig || {});

  if (!document.querySelector("script[data-theme-name]")) {
    var theme = window.Shopify && window.Shopify.theme && window.Shopify.theme.name;
    if (theme) {
      var tag = document.createElement("script");
      tag.type = "application/json";
      tag.setAttribute("data-theme-name", theme);
      document.head.appendChild(tag);
    }
  }

  function fail(err) {
    window.__playkuLoading = false;
    if (cfg.debug) console.warn("playku: failed to start", err);
  }

  function start() {
    var go = new Go();
    var url = "{{js .AssetBase}}/playku.wasm?v={{js .Version}}";
    var run = function (result) { go.run(result.instance); };
    if (WebAssembly.instantiateStreaming) {
      WebAssembly.instantiateStreaming(fetch(url), go.importObject).then(run).catch(fail);
    } else {
      fetch(url)
        .then(function (res) { return res.arrayBuffer(); })
        .then(function (buf) { return WebAssembly.instantiate(buf, go.importObject); })
        .then(run)
        .catch(fail);
    }
  }

  var runtime = document.createElement("script");
  runtime.src = "{{js .AssetBase}}/wasm_exec.js?v={{js .Version}}";
  runtime.async = true;
  runtime.onload = start;
  runtime.onerror = fail;
  document.head.appendChild(runtime);
})();
`))

type loaderData struct {
	AssetBase string
	ProxyPath string
	Version   string
}

// injectHandler serves the storefront loader and the WebAssembly widget it
// boots. Assets are compressed on the fly.
type injectHandler struct {
	dir       string
	assetBase string
	version   string
	files     http.Handler
}

func newInjectHandler(dir, assetBase string) *injectHandler {
	h := &injectHandler{dir: dir, assetBase: assetBase, version: "dev"}
	if dir == "" {
		return h
	}
	if info, err := os.Stat(filepath.Join(dir, wasmFile)); err == nil {
		h.version = strconv.FormatInt(info.ModTime().Unix(), 36)
	} else {
		slog.Warn("inject: widget binary not found", "dir", dir, "error", err)
	}
	h.files = gzhttp.GzipHandler(http.FileServer(http.Dir(dir)))
	return h
}

func (h *injectHandler) scriptURL() string {
	return h.assetBase + "/playku.js"
}

func (h *injectHandler) serveLoader(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	data := loaderData{AssetBase: h.assetBase, ProxyPath: "/apps/playku", Version: h.version}
	if err := loaderTemplate.Execute(w, data); err != nil {
		slog.Error("inject: render loader failed", "error", err)
	}
}

// serveAsset serves one of the two files the loader requests. The path is
// fixed by the route, so nothing else in dir is reachable.
func (h *injectHandler) serveAsset(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		notFoundJSON(w, r)
		return
	}
	name := path.Base(r.URL.Path)
	if r.URL.Query().Get("v") == h.version {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/" + name
	h.files.ServeHTTP(w, r2)
}
