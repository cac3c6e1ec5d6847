package loader

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
	"github.com/ysmood/gson"
)

type fakePage struct {
	height    int
	source    string
	navErr    error
	waitErr   error
	htmlErr   error
	scrollErr error

	scrolledTo []int
	navigated  []string
	// unbounded names the calls that arrived without a deadline.
	unbounded []string
}

func (f *fakePage) track(ctx context.Context, call string) {
	if _, ok := ctx.Deadline(); !ok {
		f.unbounded = append(f.unbounded, call)
	}
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.track(ctx, "Navigate")
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakePage) WaitElement(ctx context.Context, _ string) error {
	f.track(ctx, "WaitElement")
	return f.waitErr
}

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	f.track(ctx, "HTML")
	return f.source, f.htmlErr
}

func (f *fakePage) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	f.track(ctx, "Eval")
	switch {
	case strings.Contains(js, "scrollHeight"):
		return gson.New(float64(f.height)), nil
	case len(args) == 1:
		if f.scrollErr != nil {
			return gson.JSON{}, f.scrollErr
		}
		f.scrolledTo = append(f.scrolledTo, args[0].(int))
	default:
		f.scrolledTo = append(f.scrolledTo, 0)
	}
	return gson.New(nil), nil
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testPageConfig() config.PageConfig {
	return config.PageConfig{
		LoadTimeout:    time.Second,
		ElementTimeout: time.Second,
		Scroll: config.ScrollConfig{
			Step:      500,
			MaxHeight: 5000,
		},
	}
}

var defaultClassifier = KeywordClassifier(
	[]string{"보안", "차단", "blocked", "access denied", "접근 제한"}, "외식업")

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.AccessStatus
	}{
		{"plain page", "<html><body>배민외식업광장 공지사항</body></html>", models.AccessSuccess},
		{"keyword with marker", "<body>외식업 광장 보안 안내</body>", models.AccessSuccess},
		{"blocked korean", "<body>요청이 차단되었습니다</body>", models.AccessBlocked},
		{"access denied mixed case", "<h1>Access Denied</h1>", models.AccessBlocked},
		{"restricted", "<p>접근 제한 페이지</p>", models.AccessBlocked},
		{"empty", "", models.AccessSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultClassifier(tt.text); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKeywordClassifier_NoMarker(t *testing.T) {
	c := KeywordClassifier([]string{"blocked"}, "")
	if got := c("you are BLOCKED"); got != models.AccessBlocked {
		t.Errorf("got %s, want blocked", got)
	}
}

func TestLoad_Success(t *testing.T) {
	page := &fakePage{height: 1200, source: "<body>배민 외식업 광장</body>"}
	l := New(testPageConfig(), defaultClassifier, noSleep)

	out := l.Load(context.Background(), page, "https://ceo.baemin.com")

	if !out.OK() || l.State() != Loaded {
		t.Fatalf("state = %s, want loaded (err %v)", out.State, out.Err)
	}
	if out.Access != models.AccessSuccess {
		t.Errorf("access = %s, want success", out.Access)
	}
	if out.Source == "" {
		t.Error("source should be kept for login classification")
	}
	// 0, 500, 1000 then back to top.
	want := []int{0, 500, 1000, 0}
	if len(page.scrolledTo) != len(want) {
		t.Fatalf("scrolledTo = %v, want %v", page.scrolledTo, want)
	}
	for i := range want {
		if page.scrolledTo[i] != want[i] {
			t.Errorf("scrolledTo = %v, want %v", page.scrolledTo, want)
			break
		}
	}
}

func TestLoad_EveryBrowserCallHasDeadline(t *testing.T) {
	page := &fakePage{height: 1800, source: "<body>외식업</body>"}
	out := New(testPageConfig(), defaultClassifier, noSleep).Load(context.Background(), page, "https://ceo.baemin.com")
	if !out.OK() {
		t.Fatalf("load failed: %v", out.Err)
	}
	if len(page.unbounded) != 0 {
		t.Errorf("calls without deadline: %v", page.unbounded)
	}
}

func TestLoad_Blocked(t *testing.T) {
	page := &fakePage{height: 100, source: "<body>비정상적인 접근으로 차단되었습니다</body>"}
	out := New(testPageConfig(), defaultClassifier, noSleep).Load(context.Background(), page, "https://ceo.baemin.com")

	if out.State != Loaded {
		t.Fatalf("blocked pages still load, got %s", out.State)
	}
	if out.Access != models.AccessBlocked {
		t.Errorf("access = %s, want blocked", out.Access)
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name       string
		page       *fakePage
		wantState  State
		wantAccess models.AccessStatus
		wantCode   string
	}{
		{
			name:       "navigation deadline",
			page:       &fakePage{navErr: context.DeadlineExceeded},
			wantState:  TimedOut,
			wantAccess: models.AccessTimeout,
			wantCode:   models.ErrCodeNavigationTimeout,
		},
		{
			name:       "categorized navigation timeout",
			page:       &fakePage{navErr: models.NewMonitorError(models.ErrCodeNavigationTimeout, "nav", errors.New("x"))},
			wantState:  TimedOut,
			wantAccess: models.AccessTimeout,
			wantCode:   models.ErrCodeNavigationTimeout,
		},
		{
			name:       "navigation interrupted",
			page:       &fakePage{navErr: models.NewMonitorError(models.ErrCodeNavigation, "navigation canceled", context.Canceled)},
			wantState:  Errored,
			wantAccess: models.AccessError,
			wantCode:   models.ErrCodeNavigation,
		},
		{
			name:       "navigation refused",
			page:       &fakePage{navErr: errors.New("net::ERR_CONNECTION_REFUSED")},
			wantState:  Errored,
			wantAccess: models.AccessError,
			wantCode:   models.ErrCodeNavigation,
		},
		{
			name:       "body never appears",
			page:       &fakePage{waitErr: context.DeadlineExceeded},
			wantState:  TimedOut,
			wantAccess: models.AccessTimeout,
			wantCode:   models.ErrCodeNavigationTimeout,
		},
		{
			name:       "source unreadable",
			page:       &fakePage{htmlErr: errors.New("target closed")},
			wantState:  Errored,
			wantAccess: models.AccessError,
			wantCode:   models.ErrCodeNavigation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(testPageConfig(), defaultClassifier, noSleep)
			out := l.Load(context.Background(), tt.page, "https://ceo.baemin.com")
			if out.State != tt.wantState || l.State() != tt.wantState {
				t.Errorf("state = %s, want %s", out.State, tt.wantState)
			}
			if out.Access != tt.wantAccess {
				t.Errorf("access = %s, want %s", out.Access, tt.wantAccess)
			}
			if code := models.CodeOf(out.Err); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if models.DispositionOf(out.Err) != models.Terminal {
				t.Error("load failures must be terminal")
			}
		})
	}
}

func TestLoad_ScrollFailureIsNotFatal(t *testing.T) {
	page := &fakePage{height: 3000, source: "<body>ok</body>", scrollErr: errors.New("eval failed")}
	out := New(testPageConfig(), defaultClassifier, noSleep).Load(context.Background(), page, "https://x.example")
	if !out.OK() {
		t.Fatalf("scroll errors must not fail the load, got %s: %v", out.State, out.Err)
	}
}

func TestScroll_CappedAtMaxHeight(t *testing.T) {
	page := &fakePage{height: 20000}
	cfg := config.ScrollConfig{Step: 500, MaxHeight: 5000}
	if err := Scroll(context.Background(), page, cfg, noSleep); err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	// 10 steps (0..4500) plus the return to top.
	if len(page.scrolledTo) != 11 {
		t.Errorf("got %d scroll calls, want 11", len(page.scrolledTo))
	}
	if last := page.scrolledTo[9]; last != 4500 {
		t.Errorf("last step = %d, want 4500", last)
	}
}

func TestScroll_InvalidStep(t *testing.T) {
	if err := Scroll(context.Background(), &fakePage{}, config.ScrollConfig{}, noSleep); err == nil {
		t.Error("expected error for zero step")
	}
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep = %v, want context.Canceled", err)
	}
}
