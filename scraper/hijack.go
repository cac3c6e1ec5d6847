package scraper

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// trackerDomains are ad and analytics hosts whose scripts slow the settle
// phase and inject banner-like nodes that pollute slot extraction.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"facebook.net":          {},
	"connect.facebook.net":  {},
	"adnxs.com":             {},
	"criteo.com":            {},
	"criteo.net":            {},
	"taboola.com":           {},
	"outbrain.com":          {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"amplitude.com":         {},
	"braze.com":             {},
	"appsflyer.com":         {},
	"adjust.com":            {},
	"wcs.naver.net":         {},
	"kakaoad.com":           {},
	"mobon.net":             {},
	"dable.io":              {},
}

// isTrackerDomain checks a hostname and each of its parent domains.
func isTrackerDomain(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// hijackRegistrar is the part of rod.HijackRouter that installs handlers.
type hijackRegistrar interface {
	Add(pattern string, resourceType proto.NetworkResourceType, handler func(*rod.Hijack)) error
}

// registerBlocker routes every request through the tracker check.
func registerBlocker(r hijackRegistrar) error {
	if err := r.Add("*", "", func(ctx *rod.Hijack) {
		if isTrackerDomain(ctx.Request.URL().Hostname()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return fmt.Errorf("register ad blocker: %w", err)
	}
	return nil
}

// setupHijack installs a request interceptor that fails requests to
// tracker domains. Returns nil when blocking is off or cannot be
// installed; otherwise the caller owns the router and stops it on Close.
func setupHijack(page *rod.Page, blockAds bool) *rod.HijackRouter {
	if !blockAds {
		return nil
	}

	router := page.HijackRequests()
	if err := registerBlocker(router); err != nil {
		slog.Warn("ad blocking disabled", "error", err)
		if err := router.Stop(); err != nil {
			logTeardown("stop hijack router", err)
		}
		return nil
	}

	// router.Run() blocks until router.Stop().
	go router.Run()

	return router
}
