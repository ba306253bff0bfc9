package handler

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFiles embed.FS

// TemplateRenderer renders the embedded page templates through echo's
// c.Render.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses every embedded template once at startup.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	t, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{templates: t}, nil
}

// Render satisfies echo.Renderer.
func (r *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
