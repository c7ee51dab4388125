package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Element ids the glue binds to.
const (
	IDOpenStream = "openStream"
	IDParse      = "parseBtn"
	IDInput      = "presc"
	IDOutput     = "out"
)

// ContractIDs lists every id a hosting page must provide.
var ContractIDs = []string{IDOpenStream, IDParse, IDInput, IDOutput}

// Page is a parsed HTML document exposing the prescription input and the
// output container. It satisfies ui.Input and ui.Output.
type Page struct {
	mu  sync.Mutex
	doc *html.Node
}

// Load parses an HTML document.
func Load(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{doc: doc}, nil
}

// Check returns an error naming every contract element the page lacks.
func (p *Page) Check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var missing []string
	for _, id := range ContractIDs {
		if findByID(p.doc, id) == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("page is missing elements: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Value returns the current prescription text: the body of a <textarea>, the
// value attribute of an <input>, or the text content of anything else.
func (p *Page) Value() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := findByID(p.doc, IDInput)
	if n == nil {
		return ""
	}
	if strings.EqualFold(n.Data, "input") {
		return attr(n, "value")
	}
	var b strings.Builder
	collectText(&b, n)
	return b.String()
}

// SetText replaces the output element's children with a single text node.
func (p *Page) SetText(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := findByID(p.doc, IDOutput)
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

// Text returns the output element's text content.
func (p *Page) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := findByID(p.doc, IDOutput)
	if n == nil {
		return ""
	}
	var b strings.Builder
	collectText(&b, n)
	return b.String()
}

// Render writes the document, including any output set so far.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, p.doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func findByID(n *html.Node, id string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && attr(cur, "id") == id {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}
