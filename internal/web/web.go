// Package web renders the human facing pages and serves their static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/undeadops/snip/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// IndexData is what the index page lists.
type IndexData struct {
	ShortURLs []store.ShortURL
	BaseURL   string
}

// NotFoundData names the path that could not be resolved.
type NotFoundData struct {
	ShortURL string
}

// Views holds the parsed page templates.
type Views struct {
	templates *template.Template
}

// New parses the embedded templates.
func New() (*Views, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Views{templates: tmpl}, nil
}

// Index writes the listing page.
func (v *Views) Index(w http.ResponseWriter, data IndexData) error {
	return v.render(w, http.StatusOK, "index.html", data)
}

// NotFound writes the 404 page.
func (v *Views) NotFound(w http.ResponseWriter, shortURL string) error {
	return v.render(w, http.StatusNotFound, "404.html", NotFoundData{ShortURL: shortURL})
}

// render executes into a buffer first so a template error never leaves a
// half written page behind.
func (v *Views) render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := v.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded assets. Mount it with the /static/ prefix stripped.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
