package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderReviewHTML(t *testing.T) {
	html := renderReviewHTML("**great** movie")
	assert.Contains(t, html, "<strong>great</strong>")

	assert.Equal(t, "", renderReviewHTML("   "))

	// Raw HTML must come out escaped.
	html = renderReviewHTML(`<script>alert(1)</script>`)
	assert.NotContains(t, html, "<script>")
}
