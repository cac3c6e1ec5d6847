package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
)

// Session owns one browser process and the single tab a run drives.
// It is not safe for concurrent use; a run holds it exclusively.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter

	// callTimeout bounds element queries and reads.
	callTimeout time.Duration

	closeOnce sync.Once
}

// Open launches Chromium with automation fingerprints suppressed and
// prepares a tab: viewport, user agent, Accept-Language and the
// new-document scripts are all in place before the first navigation.
func Open(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight))
	l.Set(flags.Flag("lang"), cfg.Locale)
	l.Set(flags.Flag("disable-infobars"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("ignore-certificate-errors"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewMonitorError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	s := &Session{launcher: l, callTimeout: cfg.CallTimeout}
	if s.callTimeout <= 0 {
		s.callTimeout = 20 * time.Second
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewMonitorError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, models.NewMonitorError(models.ErrCodeBrowserLaunch, "failed to open tab", err)
	}
	s.page = page

	if err := s.preparePage(cfg); err != nil {
		s.Close()
		return nil, models.NewMonitorError(models.ErrCodeBrowserLaunch, "failed to prepare tab", err)
	}
	return s, nil
}

// preparePage applies the per-tab overrides. Order matters: scripts
// registered with EvalOnNewDocument only affect later navigations.
func (s *Session) preparePage(cfg config.BrowserConfig) error {
	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("viewport: %w", err)
	}

	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
	}); err != nil {
		return fmt.Errorf("user agent: %w", err)
	}

	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": cfg.AcceptLanguage}),
	}).Call(s.page); err != nil {
		return fmt.Errorf("extra headers: %w", err)
	}

	if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without it", "error", err)
	}
	if _, err := s.page.EvalOnNewDocument(navigatorOverrides); err != nil {
		return fmt.Errorf("navigator overrides: %w", err)
	}

	s.router = setupHijack(s.page, cfg.BlockAds)
	return nil
}

// Close stops request interception, closes the browser and removes the
// temporary profile. It is idempotent; teardown faults are logged, never
// returned, so they cannot mask the outcome of the run.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				logTeardown("stop hijack router", err)
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				logTeardown("close browser", err)
			}
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
		slog.Debug("browser session closed")
	})
}

func logTeardown(step string, err error) {
	te := models.NewMonitorError(models.ErrCodeTeardown, step, err)
	slog.Warn("browser teardown fault ignored", "error", te)
}
