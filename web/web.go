// Package web embeds the dashboard page templates and browser assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/erp/dashboard/internal/domain/shared/valueobject"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Funcs are the helpers available to every template
func Funcs() template.FuncMap {
	return template.FuncMap{
		"currency": valueobject.FormatCurrency,
		"quantity": valueobject.FormatQuantity,
	}
}

// Templates parses the page templates
func Templates() (*template.Template, error) {
	return template.New("pages").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
}

// Static returns the browser assets rooted at the static directory
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// static is embedded above, so the sub tree always exists
		panic(err)
	}
	return sub
}
