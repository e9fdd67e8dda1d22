package extract

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var mdParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// span is a half-open byte range [start, stop) within the issue body.
type span struct {
	start, stop int
}

// penaltySpans parses the body as markdown and returns the byte ranges
// covered by fenced code blocks, indented code blocks, inline code spans,
// and blockquotes.
func penaltySpans(body []byte) []span {
	if len(body) == 0 {
		return nil
	}

	root := mdParser.Parser().Parse(text.NewReader(body))

	var spans []span
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			spans = append(spans, lineSpans(n)...)
			return ast.WalkSkipChildren, nil
		case ast.KindBlockquote:
			spans = append(spans, subtreeSpans(n)...)
			return ast.WalkSkipChildren, nil
		case ast.KindCodeSpan:
			spans = append(spans, textChildSpans(n)...)
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})

	return spans
}

// lineSpans collects the source segments of a block node's lines.
func lineSpans(n ast.Node) []span {
	lines := n.Lines()
	out := make([]span, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, span{start: seg.Start, stop: seg.Stop})
	}
	return out
}

// subtreeSpans collects line segments from every block node under n.
func subtreeSpans(n ast.Node) []span {
	var out []span
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && c.Type() == ast.TypeBlock && c.Lines() != nil {
			out = append(out, lineSpans(c)...)
		}
		return ast.WalkContinue, nil
	})
	return out
}

// textChildSpans collects the source segments of an inline node's text children.
func textChildSpans(n ast.Node) []span {
	var out []span
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			out = append(out, span{start: t.Segment.Start, stop: t.Segment.Stop})
		}
	}
	return out
}

// insidePenalizedSpan reports whether [start, end) overlaps any penalized span.
// Offsets before the body (title matches) never overlap.
func insidePenalizedSpan(spans []span, start, end int) bool {
	if end <= 0 {
		return false
	}
	for _, s := range spans {
		if start < s.stop && end > s.start {
			return true
		}
	}
	return false
}
