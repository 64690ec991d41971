package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes mounts the status page, the redispatch form target and
// the embedded stylesheet.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	assets, err := fs.Sub(StaticFS, "static")
	if err != nil {
		panic("web: static assets missing: " + err.Error())
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(assets)))

	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("POST /dispatches/{id}/redispatch", h.Redispatch)
}
