package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/slotwatch/models"
)

// maxExcerpt bounds the stored excerpt (in characters).
const maxExcerpt = 200

// PageMeta runs Readability over the page source for site name, language
// and excerpt. It returns nil when nothing usable was found; a failure
// here never affects the run.
func PageMeta(source, pageURL string) *models.PageMeta {
	u, err := nurl.Parse(pageURL)
	if err != nil {
		slog.Debug("page meta: invalid url", "url", pageURL, "error", err)
		return nil
	}
	article, err := readability.FromReader(strings.NewReader(source), u)
	if err != nil {
		slog.Debug("page meta: readability failed", "url", pageURL, "error", err)
		return nil
	}

	meta := &models.PageMeta{
		SiteName: strings.TrimSpace(article.SiteName),
		Language: strings.TrimSpace(article.Language),
		Excerpt:  models.Truncate(strings.Join(strings.Fields(article.Excerpt), " "), maxExcerpt),
	}
	if *meta == (models.PageMeta{}) {
		return nil
	}
	return meta
}
