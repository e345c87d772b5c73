package mapview

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed map.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("map").Parse(pageSource))

// DefaultTitle is the page title used by Render.
const DefaultTitle = "Earthquakes and Tectonic Plates"

type page struct {
	Title string
	View  MapView
}

// Render writes a standalone HTML page that draws view with Leaflet.
func Render(w io.Writer, view MapView) error {
	return RenderTitled(w, DefaultTitle, view)
}

// RenderTitled is Render with a custom page title.
func RenderTitled(w io.Writer, title string, view MapView) error {
	if err := pageTemplate.Execute(w, page{Title: title, View: view}); err != nil {
		return fmt.Errorf("render map page: %w", err)
	}
	return nil
}
