package loader

import (
	"strings"

	"github.com/use-agent/slotwatch/models"
)

// Classifier maps the loaded page source to an access status. It is a
// heuristic signal: false positives and negatives are expected.
type Classifier func(pageText string) models.AccessStatus

// KeywordClassifier reports blocked when the lower-cased text contains any
// of the blocked keywords and lacks domainMarker, success otherwise. An
// empty domainMarker means any keyword hit is a block.
func KeywordClassifier(blockedKeywords []string, domainMarker string) Classifier {
	keywords := make([]string, 0, len(blockedKeywords))
	for _, kw := range blockedKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	marker := strings.ToLower(domainMarker)

	return func(pageText string) models.AccessStatus {
		text := strings.ToLower(pageText)
		hit := false
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return models.AccessSuccess
		}
		if marker != "" && strings.Contains(text, marker) {
			return models.AccessSuccess
		}
		return models.AccessBlocked
	}
}
