package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/slotwatch/models"
)

// Cookie is one injected credential cookie.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// ParseCookies decodes a JSON array of cookies. Empty input yields no
// cookies and no error.
func ParseCookies(raw string) ([]Cookie, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var cookies []Cookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		return nil, models.NewMonitorError(models.ErrCodeCookieParse, "malformed cookie list", err)
	}
	valid := cookies[:0]
	for _, c := range cookies {
		if c.Name == "" {
			slog.Warn("cookie without name skipped")
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}

// CookieTarget is the part of a Session cookie injection needs.
type CookieTarget interface {
	Navigate(ctx context.Context, url string) error
	SetCookie(ctx context.Context, c Cookie) error
}

// InjectCookies opens the target origin (cookies need a same-site document)
// and sets each cookie on its own. A cookie that fails is logged and
// skipped. It returns how many were applied. The caller's next navigation
// serves as the reload that makes the server see them.
func InjectCookies(ctx context.Context, t CookieTarget, targetURL string, cookies []Cookie) (int, error) {
	if len(cookies) == 0 {
		return 0, nil
	}
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return 0, fmt.Errorf("cookie target %q: invalid url", targetURL)
	}
	origin := u.Scheme + "://" + u.Host + "/"
	if err := t.Navigate(ctx, origin); err != nil {
		return 0, err
	}

	applied := 0
	for _, c := range cookies {
		if c.Domain == "" {
			c.Domain = u.Hostname()
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if err := t.SetCookie(ctx, c); err != nil {
			slog.Warn("cookie not applied", "name", c.Name, "domain", c.Domain, "error", err)
			continue
		}
		applied++
	}
	slog.Info("cookies injected", "applied", applied, "total", len(cookies))
	return applied, nil
}

// SetCookie sets one cookie through the DevTools protocol.
func (s *Session) SetCookie(ctx context.Context, c Cookie) error {
	_, err := proto.NetworkSetCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}.Call(s.page.Context(ctx))
	return err
}

// LoginClassifier maps page text after cookie injection to a login state.
type LoginClassifier func(pageText string) models.LoginStatus

// MarkerLoginClassifier reports failed when both the login prompt marker
// and the restricted-access marker appear in the page, success otherwise.
func MarkerLoginClassifier(loginMarker, restrictedMarker string) LoginClassifier {
	return func(pageText string) models.LoginStatus {
		if strings.Contains(pageText, loginMarker) && strings.Contains(pageText, restrictedMarker) {
			return models.LoginFailed
		}
		return models.LoginSuccess
	}
}
