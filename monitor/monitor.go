// Package monitor runs one monitoring pass: open a browser, load the
// target, extract slots, check links and hand the result to the sink.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/dom"
	"github.com/use-agent/slotwatch/extract"
	"github.com/use-agent/slotwatch/linkcheck"
	"github.com/use-agent/slotwatch/loader"
	"github.com/use-agent/slotwatch/models"
	"github.com/use-agent/slotwatch/scraper"
)

// Session is the browser surface a run drives.
type Session interface {
	loader.Page
	dom.Document
	scraper.CookieTarget
	Title(ctx context.Context) string
	CurrentURL(ctx context.Context) string
	Screenshot(ctx context.Context) ([]byte, error)
	Close()
}

// Opener starts a fresh browser session.
type Opener func(ctx context.Context) (Session, error)

// BrowserOpener opens real Chromium sessions configured by cfg.
func BrowserOpener(cfg config.BrowserConfig) Opener {
	return func(ctx context.Context) (Session, error) {
		s, err := scraper.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Monitor executes runs against a single target.
type Monitor struct {
	target    config.TargetConfig
	page      config.PageConfig
	output    config.OutputConfig
	open      Opener
	classify  loader.Classifier
	login     scraper.LoginClassifier
	extractor *extract.Extractor
	checker   *linkcheck.Checker
	sleep     loader.SleepFunc
	now       func() time.Time
	newID     func() string
}

// New wires a Monitor from configuration.
func New(cfg *config.Config, open Opener) *Monitor {
	return &Monitor{
		target:    cfg.Target,
		page:      cfg.Page,
		output:    cfg.Output,
		open:      open,
		classify:  loader.KeywordClassifier(cfg.Target.BlockedKeywords, cfg.Target.DomainMarker),
		login:     scraper.MarkerLoginClassifier(cfg.Target.LoginMarker, cfg.Target.RestrictedMarker),
		extractor: extract.New(cfg.Extract),
		checker:   linkcheck.New(cfg.Links, linkcheck.NewClient(cfg.Links.ChromeTLS)),
		sleep:     loader.Sleep,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run performs one pass under a fresh run ID.
func (m *Monitor) Run(ctx context.Context) *models.RunResult {
	return m.RunWithID(ctx, m.newID())
}

// RunWithID performs one pass and returns its result. It never returns
// nil; every failure is reflected in the result's status and errors.
func (m *Monitor) RunWithID(ctx context.Context, id string) (result *models.RunResult) {
	start := m.now()
	r := models.NewRunResult(id, m.target.URL, start)
	result = r
	slog.Info("run started", "id", r.ID, "url", r.URL)

	defer func() {
		if p := recover(); p != nil {
			slog.Error("run panicked", "id", r.ID, "panic", p)
			r.Status = models.StatusError
			r.AddError(fmt.Sprintf("Unexpected error: %v", p))
		}
		r.DurationMs = m.now().Sub(start).Milliseconds()
		logSummary(r)
	}()

	cookies, err := scraper.ParseCookies(m.target.Cookies)
	if err != nil {
		slog.Warn("cookies ignored", "error", err)
		r.AddError(fmt.Sprintf("Cookie parse error: %v", err))
	}

	sess, err := m.open(ctx)
	if err != nil {
		slog.Error("browser launch failed", "error", err)
		r.Status = models.StatusError
		r.AccessStatus = models.AccessError
		r.AddError(fmt.Sprintf("Browser launch error: %v", err))
		return r
	}
	defer sess.Close()

	applied := 0
	if len(cookies) > 0 {
		cookieCtx, cancel := context.WithTimeout(ctx, m.page.LoadTimeout)
		applied, err = scraper.InjectCookies(cookieCtx, sess, m.target.URL, cookies)
		cancel()
		if err != nil {
			slog.Warn("cookie injection failed", "error", err)
			r.AddError(fmt.Sprintf("Cookie injection error: %v", err))
		}
		// Cookies were configured but the session never received one.
		if applied == 0 {
			r.LoginStatus = models.LoginFailed
		}
	}

	ld := loader.New(m.page, m.classify, m.sleep)
	out := ld.Load(ctx, sess, m.target.URL)
	r.AccessStatus = out.Access

	if !out.OK() {
		r.Status = models.StatusFailed
		if out.State == loader.TimedOut {
			r.AddError("Page load timeout")
		} else {
			r.AddError(fmt.Sprintf("Page load error: %v", errors.Unwrap(out.Err)))
		}
		m.screenshot(ctx, sess, r)
		return r
	}

	if applied > 0 {
		r.LoginStatus = m.login(out.Source)
		slog.Info("login classified", "status", r.LoginStatus)
	}

	callCtx, cancel := m.callCtx(ctx)
	r.PageTitle = sess.Title(callCtx)
	cancel()
	callCtx, cancel = m.callCtx(ctx)
	r.CurrentURL = sess.CurrentURL(callCtx)
	cancel()
	r.PageMeta = extract.PageMeta(out.Source, r.CurrentURL)
	m.screenshot(ctx, sess, r)

	if out.Access != models.AccessSuccess {
		slog.Warn("access blocked, skipping extraction", "url", r.URL)
		r.Status = models.StatusBlocked
		return r
	}

	r.SetSlots(m.extractor.Extract(ctx, sess))
	slog.Info("slots extracted", "count", r.TotalSlots)

	total, broken, err := m.checker.CheckPage(ctx, sess)
	if err != nil {
		slog.Warn("link check failed", "error", err)
		r.AddError(fmt.Sprintf("Link check error: %v", err))
	}
	r.SetBrokenLinks(total, broken)

	r.Status = models.StatusSuccess
	return r
}

// screenshot captures the viewport to screenshots/screenshot_*.png.
// Failures are recorded but never change the run status.
func (m *Monitor) screenshot(ctx context.Context, sess Session, r *models.RunResult) {
	callCtx, cancel := m.callCtx(ctx)
	png, err := sess.Screenshot(callCtx)
	cancel()
	if err != nil {
		slog.Warn("screenshot failed", "error", err)
		r.AddError(fmt.Sprintf("Screenshot error: %v", err))
		return
	}
	if err := os.MkdirAll(m.output.ScreenshotsDir, 0o755); err != nil {
		r.AddError(fmt.Sprintf("Screenshot error: %v", err))
		return
	}
	name := "screenshot_" + m.now().In(models.KST).Format("20060102_150405") + ".png"
	path := filepath.Join(m.output.ScreenshotsDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		slog.Warn("screenshot not saved", "path", path, "error", err)
		r.AddError(fmt.Sprintf("Screenshot error: %v", err))
		return
	}
	r.Screenshot = path
	slog.Info("screenshot saved", "path", path)
}

func logSummary(r *models.RunResult) {
	attrs := []any{
		"id", r.ID,
		"status", r.Status,
		"access", r.AccessStatus,
		"login", r.LoginStatus,
		"slots", r.TotalSlots,
		"links", r.TotalLinks,
		"broken", r.BrokenLinkCount,
		"duration_ms", r.DurationMs,
	}
	if len(r.Errors) > 0 {
		attrs = append(attrs, "errors", r.Errors)
	}
	if r.Status == models.StatusSuccess {
		slog.Info("run finished", attrs...)
		return
	}
	slog.Warn("run finished", attrs...)
}

// callCtx bounds a single browser round trip.
func (m *Monitor) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.page.ElementTimeout)
}
