// Package extract turns the configured selector groups into slot records.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/dom"
	"github.com/use-agent/slotwatch/models"
)

// Extractor runs the selector groups in declared order. It is stateless
// and safe to reuse across runs.
type Extractor struct {
	groups        []config.SlotGroup
	perGroupLimit int
	maxTextLength int
	minTextLength int
}

// New creates an Extractor from cfg.
func New(cfg config.ExtractConfig) *Extractor {
	return &Extractor{
		groups:        cfg.Groups,
		perGroupLimit: cfg.PerGroupLimit,
		maxTextLength: cfg.MaxTextLength,
		minTextLength: cfg.MinTextLength,
	}
}

// Extract queries every group against doc. Element and group faults are
// logged and skipped; whatever was collected is always returned.
func (e *Extractor) Extract(ctx context.Context, doc dom.Document) []models.SlotRecord {
	slots := []models.SlotRecord{}
	next := 1

	for _, g := range e.groups {
		if ctx.Err() != nil {
			slog.Warn("slot extraction interrupted", "group", g.Name, "error", ctx.Err())
			break
		}

		els, err := doc.QueryAll(ctx, g.Selector)
		if err != nil {
			gerr := models.NewMonitorError(models.ErrCodeSelectorGroup, "selector group "+g.Name, err)
			slog.Debug("selector group skipped", "error", gerr)
			continue
		}
		if e.perGroupLimit > 0 && len(els) > e.perGroupLimit {
			els = els[:e.perGroupLimit]
		}

		for _, el := range els {
			rec, keep, err := e.record(g.Name, el)
			if err != nil {
				eerr := models.NewMonitorError(models.ErrCodeExtractionElement, "element in "+g.Name, err)
				slog.Debug("element skipped", "error", eerr)
				continue
			}
			if !keep {
				continue
			}
			rec.Index = models.SlotIndex(next)
			next++
			slots = append(slots, rec)
		}
	}

	slog.Info("slots extracted", "count", len(slots))
	return slots
}

// record reads one element. keep is false for text below the noise floor.
func (e *Extractor) record(group string, el dom.Element) (models.SlotRecord, bool, error) {
	text, err := el.Text()
	if err != nil {
		return models.SlotRecord{}, false, fmt.Errorf("text: %w", err)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < e.minTextLength {
		return models.SlotRecord{}, false, nil
	}

	tag, err := el.TagName()
	if err != nil {
		return models.SlotRecord{}, false, fmt.Errorf("tag: %w", err)
	}
	visible, err := el.Visible()
	if err != nil {
		return models.SlotRecord{}, false, fmt.Errorf("visibility: %w", err)
	}

	rec := models.SlotRecord{
		Type:    group,
		Text:    models.Truncate(text, e.maxTextLength),
		Tag:     tag,
		Visible: visible,
	}

	switch tag {
	case "a":
		href, err := el.ResolvedURL("href")
		if err != nil {
			return models.SlotRecord{}, false, fmt.Errorf("href: %w", err)
		}
		rec.Href = &href
	case "img":
		src, err := el.ResolvedURL("src")
		if err != nil {
			return models.SlotRecord{}, false, fmt.Errorf("src: %w", err)
		}
		alt, _, err := el.Attr("alt")
		if err != nil {
			return models.SlotRecord{}, false, fmt.Errorf("alt: %w", err)
		}
		rec.Src, rec.Alt = &src, &alt
	}
	return rec, true, nil
}
