package linkcheck

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
	"github.com/use-agent/slotwatch/dom"
)

// Candidate is one unique link target found on the page.
type Candidate struct {
	URL  string
	Text string
}

// skippedPrefixes are raw href values that never leave the page.
var skippedPrefixes = []string{"javascript:", "#", "mailto:"}

// Candidates walks the first maxLinks anchors with an href (maxLinks <= 0
// means all) and returns the checkable ones in page order. Anchors with an
// empty href, an in-page or non-HTTP scheme, or a URL already taken are
// skipped; skipped anchors still count against maxLinks.
func Candidates(ctx context.Context, doc dom.Document, maxLinks int) ([]Candidate, error) {
	anchors, err := doc.QueryAll(ctx, "a[href]")
	if err != nil {
		return nil, err
	}
	if maxLinks > 0 && len(anchors) > maxLinks {
		anchors = anchors[:maxLinks]
	}

	seen := make(map[string]struct{}, len(anchors))
	out := make([]Candidate, 0, len(anchors))
	for _, a := range anchors {
		raw, _, err := a.Attr("href")
		if err != nil {
			slog.Debug("anchor skipped", "error", err)
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || hasSkippedPrefix(raw) {
			continue
		}

		resolved, err := a.ResolvedURL("href")
		if err != nil {
			slog.Debug("anchor skipped", "href", raw, "error", err)
			continue
		}
		if resolved == "" || hasSkippedPrefix(resolved) {
			continue
		}
		key := dedupKey(resolved)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		text, _ := a.Text()
		out = append(out, Candidate{URL: resolved, Text: strings.TrimSpace(text)})
	}
	return out, nil
}

// dedupKey folds spellings of the same URL (host case, default port,
// needless escapes) onto one key. The fragment is kept.
func dedupKey(resolved string) string {
	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}
	return purell.NormalizeURL(u, purell.FlagsSafe)
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
