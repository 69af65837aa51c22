// Package web embeds the HTML templates and static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templates embed.FS

//go:embed static
var static embed.FS

// Engine returns the template engine. With reload set, templates are parsed
// on every render.
func Engine(reload bool) *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.Reload(reload)
	engine.AddFunc("join", strings.Join)
	engine.AddFunc("inc", func(i int) int { return i + 1 })
	return engine
}

// Static serves the files under static/ (mounted at /static).
func Static() http.FileSystem {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
