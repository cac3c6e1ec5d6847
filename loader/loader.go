// Package loader drives one navigation of the monitored page and decides
// whether the browser got the real page.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ysmood/gson"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
)

// Page is what the loader needs from a browser session.
type Page interface {
	Evaluator
	Navigate(ctx context.Context, url string) error
	WaitElement(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
}

// State is the loader's position in NotStarted → Loading → {Loaded,
// TimedOut, Errored}.
type State int

const (
	NotStarted State = iota
	Loading
	Loaded
	TimedOut
	Errored
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case TimedOut:
		return "timed_out"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of Load.
type Outcome struct {
	State  State
	Access models.AccessStatus

	// Source is the page source at classification time; empty unless Loaded.
	Source string

	// Err is a *models.MonitorError when State is TimedOut or Errored.
	Err error
}

// OK reports whether the page reached Loaded.
func (o Outcome) OK() bool { return o.State == Loaded }

// Loader performs a single page load. Create one per run.
type Loader struct {
	cfg      config.PageConfig
	classify Classifier
	sleep    SleepFunc
	state    State
}

// New creates a Loader. A nil sleep uses the real clock.
func New(cfg config.PageConfig, classify Classifier, sleep SleepFunc) *Loader {
	if sleep == nil {
		sleep = Sleep
	}
	return &Loader{cfg: cfg, classify: classify, sleep: sleep}
}

// State returns the current state.
func (l *Loader) State() State { return l.state }

// Load navigates to url and runs the wait / settle / scroll sequence, then
// classifies access. Scroll faults are logged and do not fail the load.
func (l *Loader) Load(ctx context.Context, page Page, url string) Outcome {
	l.state = Loading
	slog.Info("loading page", "url", url)

	navCtx, cancel := context.WithTimeout(ctx, l.cfg.LoadTimeout)
	err := page.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return l.fail(err)
	}

	// Interstitial bot checks run right after the first response.
	if err := l.sleep(ctx, l.cfg.ChallengeDelay); err != nil {
		return l.fail(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.ElementTimeout)
	err = page.WaitElement(waitCtx, "body")
	cancel()
	if err != nil {
		return l.fail(err)
	}

	if err := l.sleep(ctx, l.cfg.SettleDelay); err != nil {
		return l.fail(err)
	}

	if err := Scroll(ctx, boundedEvaluator{page, l.cfg.ElementTimeout}, l.cfg.Scroll, l.sleep); err != nil {
		if ctx.Err() != nil {
			return l.fail(ctx.Err())
		}
		slog.Warn("scroll failed, continuing", "error", err)
	}

	htmlCtx, cancel := context.WithTimeout(ctx, l.cfg.ElementTimeout)
	source, err := page.HTML(htmlCtx)
	cancel()
	if err != nil {
		return l.fail(err)
	}

	l.state = Loaded
	access := l.classify(source)
	if access == models.AccessBlocked {
		slog.Warn("access appears blocked", "url", url)
	} else {
		slog.Info("page loaded", "url", url, "access", access)
	}
	return Outcome{State: Loaded, Access: access, Source: source}
}

// boundedEvaluator gives every Eval its own deadline.
type boundedEvaluator struct {
	Evaluator
	timeout time.Duration
}

func (b boundedEvaluator) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Evaluator.Eval(ctx, js, args...)
}

func (l *Loader) fail(err error) Outcome {
	if isTimeout(err) {
		l.state = TimedOut
		slog.Error("page load timeout", "error", err)
		return Outcome{
			State:  TimedOut,
			Access: models.AccessTimeout,
			Err:    models.NewMonitorError(models.ErrCodeNavigationTimeout, "Page load timeout", err),
		}
	}
	l.state = Errored
	slog.Error("page load error", "error", err)
	return Outcome{
		State:  Errored,
		Access: models.AccessError,
		Err:    models.NewMonitorError(models.ErrCodeNavigation, "Page load error", err),
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		models.CodeOf(err) == models.ErrCodeNavigationTimeout
}
