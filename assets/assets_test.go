package assets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	page, err := Build("")
	require.NoError(t, err)

	s := string(page)
	assert.Contains(t, s, DefaultTitle)
	assert.Contains(t, s, "leaflet.js")
	assert.Contains(t, s, "api/map")
	assert.Contains(t, s, "error-banner")
	assert.NotContains(t, s, "{{")
	assert.Less(t, len(page), len(indexTemplate)+len(style)+len(script))
}

func TestBuildCustomTitle(t *testing.T) {
	page, err := Build("Quakes")
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Quakes</title>")
}

func TestFavicon(t *testing.T) {
	icon, err := Favicon()
	require.NoError(t, err)
	assert.Contains(t, string(icon), "<svg")
	assert.Less(t, len(icon), len(faviconSVG))
}

func TestScriptPinsLegendAndReusesMap(t *testing.T) {
	assert.Contains(t, script, `fetch("api/legend?snapshot=" + encodeURIComponent(snapshot))`)
	assert.Contains(t, script, "addLegend(map, doc.snapshot)")

	// A failed draw must report the error without initializing the map twice.
	catchAt := strings.Index(script, ".catch(function (err) {\n      showErrors([err.message]);\n      if (current) {")
	require.NotEqual(t, -1, catchAt)
	assert.Less(t, catchAt, strings.LastIndex(script, "createMap(FALLBACK_VIEW"))
}
