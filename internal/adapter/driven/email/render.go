package email

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderBody builds the sanitized HTML body for a notification email. The
// message may carry markdown copied from issue text, so it goes through the
// markdown renderer and sanitizer before being embedded.
func RenderBody(n model.Notification) string {
	var md strings.Builder
	md.WriteString(n.Message)
	md.WriteString("\n")
	if n.IssueURL != "" {
		fmt.Fprintf(&md, "\n[View the issue](%s)\n", n.IssueURL)
	}

	return renderMarkdown(md.String())
}

// renderMarkdown converts a markdown string to sanitized HTML. Falls back to
// sanitizing the raw input if conversion fails.
func renderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}
