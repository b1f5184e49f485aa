// Package pagecodec converts between a todo list and the HTML fragment that
// stores it on a OneNote page.
package pagecodec

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pkt.systems/todosync/schema"
)

const (
	// TagAttr marks a paragraph as a todo item.
	TagAttr = "data-tag"
	// TagOpen is the marker of an unfinished item.
	TagOpen = "to-do"
	// TagDone is the marker of a finished item.
	TagDone = "to-do:completed"
)

// Decode reads the todo paragraphs of a page in document order. Paragraphs
// without a todo marker, or with any other marker value, are skipped.
func Decode(r io.Reader) (schema.TodoList, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrMalformedDocument, err)
	}
	list := schema.TodoList{}
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.P {
			return true
		}
		tag, ok := attr(n, TagAttr)
		if !ok || (tag != TagOpen && tag != TagDone) {
			return true
		}
		list = append(list, schema.TodoItem{Task: textContent(n), Done: tag == TagDone})
		return false
	})
	return list, nil
}

// Encode renders list as one marked paragraph per item. Task text is escaped.
func Encode(list schema.TodoList) (string, error) {
	var b strings.Builder
	for _, item := range list {
		tag := TagOpen
		if item.Done {
			tag = TagDone
		}
		p := &html.Node{
			Type:     html.ElementNode,
			Data:     "p",
			DataAtom: atom.P,
			Attr:     []html.Attribute{{Key: TagAttr, Val: tag}},
		}
		if item.Task != "" {
			p.AppendChild(&html.Node{Type: html.TextNode, Data: item.Task})
		}
		if err := html.Render(&b, p); err != nil {
			return "", fmt.Errorf("render todo item: %w", err)
		}
	}
	return b.String(), nil
}

// NewPage renders the document used to create an empty synchronized page. The
// body holds a single div that later serves as the update anchor.
func NewPage(title string) string {
	return "<html><head><title>" + html.EscapeString(title) + "</title></head>" +
		"<body><div><p>placeholder</p></div></body></html>"
}

// Anchor returns the id of the first div of a page fetched with element ids.
func Anchor(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", schema.ErrMalformedDocument, err)
	}
	var div *html.Node
	walk(doc, func(n *html.Node) bool {
		if div != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Div {
			div = n
			return false
		}
		return true
	})
	if div == nil {
		return "", fmt.Errorf("%w: page has no div", schema.ErrMalformedDocument)
	}
	id, ok := attr(div, "id")
	if !ok || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: first div has no id", schema.ErrMalformedDocument)
	}
	return id, nil
}

// walk visits n and its descendants in document order; visit returns false to
// skip a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
