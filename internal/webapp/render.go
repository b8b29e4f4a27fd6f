package webapp

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/go-playground/errors/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders a named page to w.
type Renderer interface {
	Render(w io.Writer, page string, data any) error
}

// TemplateRenderer renders the embedded html/template pages.
type TemplateRenderer struct {
	templates *template.Template
}

var _ Renderer = (*TemplateRenderer)(nil)

// NewTemplateRenderer parses the embedded templates. The embedded files are
// part of the build, a parse failure is a programming error.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

// Render executes the page template.
func (t *TemplateRenderer) Render(w io.Writer, page string, data any) error {
	if err := t.templates.ExecuteTemplate(w, page, data); err != nil {
		return errors.Wrap(err, "template.Template.ExecuteTemplate()")
	}

	return nil
}

// render executes a page into a buffer first, so a template failure can still
// become an error response instead of a half written page.
func (a *App) render(w http.ResponseWriter, page string, data any) error {
	var buf bytes.Buffer
	if err := a.renderer.Render(&buf, page, data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		return errors.Wrap(err, "bytes.Buffer.WriteTo()")
	}

	return nil
}
