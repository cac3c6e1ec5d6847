package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/use-agent/slotwatch/models"
)

type fakeCookieTarget struct {
	navigated []string
	set       []Cookie
	failOn    string
	navErr    error
}

func (f *fakeCookieTarget) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeCookieTarget) SetCookie(_ context.Context, c Cookie) error {
	if c.Name == f.failOn {
		return errors.New("rejected")
	}
	f.set = append(f.set, c)
	return nil
}

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"whitespace", "  \n", 0, false},
		{"two cookies", `[{"name":"a","value":"1"},{"name":"b","value":"2","domain":".x.com","httpOnly":true}]`, 2, false},
		{"nameless skipped", `[{"name":"","value":"1"},{"name":"b","value":"2"}]`, 1, false},
		{"malformed", `[{"name":`, 0, true},
		{"object not array", `{"name":"a"}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCookies(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if code := models.CodeOf(err); code != models.ErrCodeCookieParse {
					t.Errorf("code = %q, want %q", code, models.ErrCodeCookieParse)
				}
				if models.DispositionOf(err) != models.Absorb {
					t.Error("cookie parse errors must be absorbed")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d cookies, want %d", len(got), tt.want)
			}
		})
	}
}

func TestInjectCookies_SkipsFailures(t *testing.T) {
	target := &fakeCookieTarget{failOn: "bad"}
	cookies := []Cookie{
		{Name: "sid", Value: "1"},
		{Name: "bad", Value: "2"},
		{Name: "pref", Value: "3", Domain: ".baemin.com", Path: "/ceo"},
	}

	applied, err := InjectCookies(context.Background(), target, "https://ceo.baemin.com/some/page?q=1", cookies)
	if err != nil {
		t.Fatalf("InjectCookies: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
	if len(target.navigated) != 1 || target.navigated[0] != "https://ceo.baemin.com/" {
		t.Errorf("navigated = %v, want origin root once", target.navigated)
	}
	if target.set[0].Domain != "ceo.baemin.com" || target.set[0].Path != "/" {
		t.Errorf("defaults not applied: %+v", target.set[0])
	}
	if target.set[1].Domain != ".baemin.com" || target.set[1].Path != "/ceo" {
		t.Errorf("explicit domain/path overwritten: %+v", target.set[1])
	}
}

func TestInjectCookies_NoCookies(t *testing.T) {
	target := &fakeCookieTarget{}
	applied, err := InjectCookies(context.Background(), target, "https://ceo.baemin.com", nil)
	if err != nil || applied != 0 {
		t.Errorf("got (%d, %v), want (0, nil)", applied, err)
	}
	if len(target.navigated) != 0 {
		t.Error("should not navigate without cookies")
	}
}

func TestInjectCookies_NavigationFails(t *testing.T) {
	target := &fakeCookieTarget{navErr: errors.New("boom")}
	_, err := InjectCookies(context.Background(), target, "https://ceo.baemin.com", []Cookie{{Name: "a"}})
	if err == nil {
		t.Fatal("expected navigation error")
	}
	if len(target.set) != 0 {
		t.Error("cookies should not be set when the origin did not load")
	}
}

func TestMarkerLoginClassifier(t *testing.T) {
	classify := MarkerLoginClassifier("로그인", "보안")
	tests := []struct {
		text string
		want models.LoginStatus
	}{
		{"사장님 외식업 광장 마이페이지", models.LoginSuccess},
		{"로그인 해주세요", models.LoginSuccess},
		{"보안 문자를 입력하세요", models.LoginSuccess},
		{"보안을 위해 다시 로그인 해주세요", models.LoginFailed},
	}
	for _, tt := range tests {
		if got := classify(tt.text); got != tt.want {
			t.Errorf("classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
