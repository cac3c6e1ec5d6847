package dom

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// StaticDocument is a parsed HTML snapshot. It is used to re-run the
// extraction stages offline against a saved page and in tests.
type StaticDocument struct {
	doc  *goquery.Document
	base *url.URL
}

// ParseHTML parses r and resolves relative URLs against baseURL.
func ParseHTML(r io.Reader, baseURL string) (*StaticDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &StaticDocument{doc: goquery.NewDocumentFromNode(root), base: base}, nil
}

// Text returns the whitespace-collapsed text of the whole document.
func (d *StaticDocument) Text() string {
	return collapse(d.doc.Find("body").Text())
}

// QueryAll implements Document.
func (d *StaticDocument) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	var out []Element
	d.doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &staticElement{sel: s, base: d.base})
	})
	return out, nil
}

type staticElement struct {
	sel  *goquery.Selection
	base *url.URL
}

func (e *staticElement) Text() (string, error) {
	return collapse(e.sel.Text()), nil
}

func (e *staticElement) TagName() (string, error) {
	return strings.ToLower(goquery.NodeName(e.sel)), nil
}

// hiddenTags are never rendered.
var hiddenTags = map[string]struct{}{
	"head": {}, "script": {}, "style": {}, "template": {}, "noscript": {},
}

// Visible approximates rendering from markup alone: the node and its
// ancestors must not be hidden by attribute or inline style.
func (e *staticElement) Visible() (bool, error) {
	for n := e.sel.Nodes[0]; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, ok := hiddenTags[n.Data]; ok {
			return false, nil
		}
		for _, a := range n.Attr {
			switch a.Key {
			case "hidden":
				return false, nil
			case "style":
				style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false, nil
				}
			}
		}
	}
	return true, nil
}

func (e *staticElement) Attr(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *staticElement) ResolvedURL(name string) (string, error) {
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", nil
	}
	v = strings.TrimSpace(v)
	ref, err := url.Parse(v)
	if err != nil {
		return v, nil
	}
	return e.base.ResolveReference(ref).String(), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
