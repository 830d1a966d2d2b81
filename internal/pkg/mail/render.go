package mail

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var htmlRenderer = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// RenderHTML converts a plain notification body into HTML. Raw HTML in the
// body is not passed through.
func RenderHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
