package textx

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// RemoveHTMLTags strips markup from text, dropping comments and the
// contents of script and style elements. With keepText false the contents of
// every element go too, leaving only the text between top-level elements.
// Entities are decoded.
func RemoveHTMLTags(text string, keepText bool) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(text), body)
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", ErrInvalidArgument, err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if !keepText || skipped[n.DataAtom] {
				return
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String()), nil
}

// HTMLToMarkdown converts an HTML document or fragment to CommonMark.
func HTMLToMarkdown(doc string) (string, error) {
	md, err := htmltomarkdown.ConvertString(doc)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
