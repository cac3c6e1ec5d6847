package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/slotwatch/config"
	"github.com/ysmood/gson"
)

// Evaluator runs page scripts.
type Evaluator interface {
	Eval(ctx context.Context, js string, args ...any) (gson.JSON, error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scroll walks the page down in fixed steps so lazy-loading observers fire,
// then returns to the top. It visits y = 0, step, 2*step, ... while
// y < min(scrollHeight, MaxHeight).
func Scroll(ctx context.Context, page Evaluator, cfg config.ScrollConfig, sleep SleepFunc) error {
	if cfg.Step <= 0 {
		return fmt.Errorf("scroll step must be positive, got %d", cfg.Step)
	}
	if sleep == nil {
		sleep = Sleep
	}

	h, err := page.Eval(ctx, `() => document.body.scrollHeight`)
	if err != nil {
		return fmt.Errorf("read scroll height: %w", err)
	}
	limit := min(h.Int(), cfg.MaxHeight)

	for y := 0; y < limit; y += cfg.Step {
		if _, err := page.Eval(ctx, `(y) => window.scrollTo(0, y)`, y); err != nil {
			return fmt.Errorf("scroll to %d: %w", y, err)
		}
		if err := sleep(ctx, cfg.Pause); err != nil {
			return err
		}
	}

	if _, err := page.Eval(ctx, `() => window.scrollTo(0, 0)`); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return sleep(ctx, cfg.ReturnPause)
}
