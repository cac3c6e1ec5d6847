package scraper

import (
	"context"
	"errors"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/slotwatch/dom"
	"github.com/use-agent/slotwatch/models"
	"github.com/ysmood/gson"
)

// Navigate loads url and waits for the load event. ctx bounds both.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to "+url+" failed")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(err, "waiting for load event failed")
	}
	return nil
}

// WaitElement blocks until selector matches at least one element.
func (s *Session) WaitElement(ctx context.Context, selector string) error {
	if _, err := s.page.Context(ctx).Element(selector); err != nil {
		return categorizeError(err, "waiting for "+selector+" failed")
	}
	return nil
}

// Eval runs js (a function expression) in the page and returns its value.
func (s *Session) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

// HTML returns the current serialized document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Title returns document.title, or "" if it cannot be read.
func (s *Session) Title(ctx context.Context) string {
	return s.evalStringOrEmpty(ctx, `() => document.title`)
}

// CurrentURL returns the address after redirects, or "".
func (s *Session) CurrentURL(ctx context.Context) string {
	return s.evalStringOrEmpty(ctx, `() => window.location.href`)
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, models.NewMonitorError(models.ErrCodeScreenshot, "screenshot failed", err)
	}
	return data, nil
}

// QueryAll implements dom.Document over the live page.
// The returned elements outlive the query; each read gets its own deadline
// derived from ctx.
func (s *Session) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	qctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	els, err := s.page.Context(qctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el, ctx: ctx, timeout: s.callTimeout}
	}
	return out, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func (s *Session) evalStringOrEmpty(ctx context.Context, js string) string {
	v, err := s.Eval(ctx, js)
	if err != nil {
		return ""
	}
	return v.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed MonitorErrors so the loader
// can tell a timeout from any other navigation fault.
func categorizeError(err error, msg string) *models.MonitorError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewMonitorError(models.ErrCodeNavigationTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewMonitorError(models.ErrCodeNavigation, "navigation canceled", err)
	default:
		return models.NewMonitorError(models.ErrCodeNavigation, msg, err)
	}
}
