package item

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var reviewEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Strikethrough,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
	),
)

// renderReviewHTML converts a review's markdown to HTML. Raw HTML in the
// source is escaped by goldmark's default renderer, so user reviews
// cannot inject markup.
func renderReviewHTML(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	var buf strings.Builder
	if err := reviewEngine.Convert([]byte(md), &buf); err != nil {
		return ""
	}
	return buf.String()
}
