// Package assets embeds the browser client and builds the minified index page.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// DefaultTitle is the page title used when none is configured.
const DefaultTitle = "Earthquakes of the Past Week"

var (
	//go:embed index.html.tpl
	indexTemplate string

	//go:embed style.css
	style string

	//go:embed script.js
	script string

	//go:embed favicon.svg
	faviconSVG string
)

// PageData is passed to the index template.
type PageData struct {
	Title string
	CSS   string
	JS    string
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}

// Build renders the index page with inlined, minified CSS and JS.
func Build(title string) ([]byte, error) {
	if title == "" {
		title = DefaultTitle
	}

	m := newMinifier()

	cssMin, err := m.String("text/css", style)
	if err != nil {
		return nil, fmt.Errorf("minify CSS: %w", err)
	}

	jsMin, err := m.String("text/javascript", script)
	if err != nil {
		return nil, fmt.Errorf("minify JS: %w", err)
	}

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, PageData{Title: title, CSS: cssMin, JS: jsMin}); err != nil {
		return nil, fmt.Errorf("render index template: %w", err)
	}

	out, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify HTML: %w", err)
	}

	return out, nil
}

// Favicon returns the minified SVG favicon.
func Favicon() ([]byte, error) {
	out, err := newMinifier().String("image/svg+xml", faviconSVG)
	if err != nil {
		return nil, fmt.Errorf("minify favicon: %w", err)
	}
	return []byte(out), nil
}
