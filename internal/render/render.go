package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ErrUnknownPage is returned when no template is registered under the requested name.
var ErrUnknownPage = errors.New("unknown page")

// Page names served by the dashboard routes.
const (
	PageDashboard = "index.html"
	PageHistory   = "history.html"
)

// PageData is passed to every page template.
type PageData struct {
	Title string
}

var pageTitles = map[string]string{
	PageDashboard: "Rover Dashboard",
	PageHistory:   "Rover History",
}

// Renderer executes named HTML templates.
type Renderer interface {
	Render(w io.Writer, name string) error
}

// TemplateRenderer renders templates parsed once from an fs.FS.
type TemplateRenderer struct {
	tmpl *template.Template
}

// New parses the embedded page templates.
func New() (*TemplateRenderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	return NewFromFS(sub)
}

// NewFromFS parses every *.html file at the root of fsys.
func NewFromFS(fsys fs.FS) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{tmpl: tmpl}, nil
}

// Render executes the named template into w. Output is buffered so that nothing is
// written when execution fails.
func (r *TemplateRenderer) Render(w io.Writer, name string) error {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPage, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, PageData{Title: pageTitles[name]}); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler serves the embedded assets under /static/.
func StaticHandler() http.Handler {
	return http.FileServer(http.FS(staticFS))
}
