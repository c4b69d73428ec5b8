package render

import (
	"html"
	"html/template"
	"io"

	"github.com/woozymasta/quakemap/internal/scale"
)

var legendTemplate = template.Must(template.New("legend").Parse(
	`<strong>{{.Title}}</strong><br>` +
		`{{range $i, $row := .Rows}}{{if $i}}<br>{{end}}` +
		`<div class="legend-swatch" style="{{$row.Style}}"></div><span>{{$row.Label}}</span>` +
		`{{end}}`,
))

type legendRow struct {
	Style template.CSS
	Label template.HTML
}

// RenderLegendHTML writes the legend fragment, one swatch and range label
// per bin. The fragment replaces the legend container content as a whole.
func RenderLegendHTML(w io.Writer, title string, entries []scale.LegendEntry) error {
	rows := make([]legendRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, legendRow{
			// Hex is built from uint8 channels only
			Style: template.CSS("background-color: " + e.Color.Hex() + "; width: 20px; height: 10px; display: inline-block;"),
			Label: template.HTML(html.EscapeString(e.Label)),
		})
	}

	return legendTemplate.Execute(w, struct {
		Title string
		Rows  []legendRow
	}{Title: title, Rows: rows})
}
