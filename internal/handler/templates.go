// Package handler contains the HTTP handlers behind the dashboard routes.
//
// Handlers own form parsing, call the service layer, map domain errors to
// HTTP statuses, and render HTML. They hold no business logic: a handler
// that validates anything beyond "the form field exists" is in the wrong
// layer.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Renderer holds the parsed page templates. Each page is parsed together
// with base.html at startup so request handling never touches the disk, and
// a broken template fails the process at boot instead of mid-request.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

var templateFuncs = template.FuncMap{
	// formatTime renders stored UTC timestamps for display. The zero time
	// means the value was never set.
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
}

// NewRenderer parses every page template in templateDir against base.html.
// Pages are addressed by file name without the .html suffix, so
// "index.html" renders as page "index".
func NewRenderer(templateDir string, logger *slog.Logger) (*Renderer, error) {
	basePath := filepath.Join(templateDir, "base.html")

	pagePaths, err := filepath.Glob(filepath.Join(templateDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("scanning template dir %s: %w", templateDir, err)
	}

	pages := make(map[string]*template.Template)
	for _, pagePath := range pagePaths {
		name := strings.TrimSuffix(filepath.Base(pagePath), ".html")
		if name == "base" {
			continue
		}
		tmpl, err := template.New(filepath.Base(basePath)).Funcs(templateFuncs).ParseFiles(basePath, pagePath)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", pagePath, err)
		}
		pages[name] = tmpl
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no page templates found in %s", templateDir)
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes the named page with the given status code. The template
// executes into a buffer first: once any body byte reaches the wire the
// status is fixed, so a template failure mid-write could not become a clean
// 500 otherwise.
func (rend *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := rend.pages[page]
	if !ok {
		rend.logger.Error("unknown template page", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rend.logger.Error("rendering template failed",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rend.logger.Warn("writing response failed", slog.String("error", err.Error()))
	}
}
