// Package dom is the minimal document model the extraction stages work
// against. The live browser page and a parsed HTML snapshot both satisfy it.
package dom

import "context"

// Element is one matched node.
type Element interface {
	// Text returns the rendered text of the node.
	Text() (string, error)

	// TagName returns the lower-case tag name.
	TagName() (string, error)

	// Visible reports whether the node is rendered.
	Visible() (bool, error)

	// Attr returns the raw attribute value and whether it is present.
	Attr(name string) (string, bool, error)

	// ResolvedURL returns a URL-valued attribute (href, src) resolved
	// against the document, or "" when the attribute is absent.
	ResolvedURL(name string) (string, error)
}

// Document answers CSS selector queries.
type Document interface {
	// QueryAll returns every element matching selector in document order.
	// It does not wait for elements to appear.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}
