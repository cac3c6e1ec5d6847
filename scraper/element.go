package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// element adapts a rod element to dom.Element. ctx is the query's context;
// every read runs under a fresh timeout derived from it.
type element struct {
	el      *rod.Element
	ctx     context.Context
	timeout time.Duration
}

// call runs fn against el bound to a per-read deadline.
func (e *element) call(fn func(el *rod.Element) error) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()
	return fn(e.el.Context(ctx))
}

// Text returns innerText, which already excludes hidden descendants.
func (e *element) Text() (text string, err error) {
	err = e.call(func(el *rod.Element) error {
		text, err = el.Text()
		return err
	})
	return text, err
}

func (e *element) TagName() (string, error) {
	var tag string
	err := e.call(func(el *rod.Element) error {
		res, err := el.Eval(`() => this.tagName`)
		if err != nil {
			return err
		}
		tag = strings.ToLower(res.Value.Str())
		return nil
	})
	return tag, err
}

func (e *element) Visible() (visible bool, err error) {
	err = e.call(func(el *rod.Element) error {
		visible, err = el.Visible()
		return err
	})
	return visible, err
}

func (e *element) Attr(name string) (string, bool, error) {
	var v *string
	err := e.call(func(el *rod.Element) error {
		var err error
		v, err = el.Attribute(name)
		return err
	})
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// ResolvedURL reads the DOM property rather than the attribute so the
// browser has already resolved it against the document base.
func (e *element) ResolvedURL(name string) (string, error) {
	_, ok, err := e.Attr(name)
	if err != nil || !ok {
		return "", err
	}
	var resolved string
	err = e.call(func(el *rod.Element) error {
		prop, err := el.Property(name)
		if err != nil {
			return err
		}
		resolved = prop.Str()
		return nil
	})
	return resolved, err
}
