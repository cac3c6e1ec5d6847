// Package linkcheck verifies the health of the links found on the page.
package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/dom"
	"github.com/use-agent/slotwatch/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxDetail bounds link text and error detail in a BrokenLink.
const maxDetail = 50

// Checker issues one independent request per candidate URL.
type Checker struct {
	client  *http.Client
	cfg     config.LinksConfig
	limiter *rate.Limiter
}

// New creates a Checker. A nil client uses NewClient(cfg.ChromeTLS).
func New(cfg config.LinksConfig, client *http.Client) *Checker {
	if client == nil {
		client = NewClient(cfg.ChromeTLS)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	c := &Checker{client: client, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// CheckPage collects candidates from doc and checks them. It returns how
// many unique URLs were checked and the broken ones in page order.
func (c *Checker) CheckPage(ctx context.Context, doc dom.Document) (int, []models.BrokenLink, error) {
	cands, err := Candidates(ctx, doc, c.cfg.MaxLinks)
	if err != nil {
		return 0, nil, fmt.Errorf("collect links: %w", err)
	}
	broken := c.Check(ctx, cands)
	slog.Info("links checked", "total", len(cands), "broken", len(broken))
	return len(cands), broken, nil
}

// Check runs the candidates through a bounded pool. Results are stored by
// candidate position, so the output order matches the input order whatever
// the concurrency.
func (c *Checker) Check(ctx context.Context, cands []Candidate) []models.BrokenLink {
	results := make([]*models.BrokenLink, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, cand := range cands {
		g.Go(func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(gctx); err != nil {
					return nil
				}
			}
			results[i] = c.checkOne(gctx, cand)
			return nil
		})
	}
	_ = g.Wait()

	broken := make([]models.BrokenLink, 0)
	for _, r := range results {
		if r != nil {
			broken = append(broken, *r)
		}
	}
	return broken
}

// checkOne returns nil for healthy links and for network failures that are
// configured to be dropped.
func (c *Checker) checkOne(ctx context.Context, cand Candidate) *models.BrokenLink {
	status, err := c.status(ctx, cand.URL)
	if err != nil {
		lerr := models.NewMonitorError(models.ErrCodeLinkRequest, cand.URL, err)
		if !c.cfg.RecordUnreachable {
			slog.Debug("link unreachable, not recorded", "error", lerr)
			return nil
		}
		slog.Warn("link unreachable", "url", cand.URL, "reason", describe(err))
		return &models.BrokenLink{
			URL:    cand.URL,
			Status: models.Unreachable(),
			Text:   models.Truncate(cand.Text, maxDetail),
			Error:  models.Truncate(describe(err), maxDetail),
		}
	}
	if status >= 400 {
		slog.Warn("broken link", "url", cand.URL, "status", status)
		return &models.BrokenLink{
			URL:    cand.URL,
			Status: models.HTTPStatus(status),
			Text:   models.Truncate(cand.Text, maxDetail),
		}
	}
	return nil
}

// status issues HEAD (and optionally GET when HEAD is refused) under the
// per-link timeout and returns the final status code.
func (c *Checker) status(ctx context.Context, target string) (int, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	code, err := c.do(ctx, http.MethodHead, target)
	if err != nil {
		return 0, err
	}
	if c.cfg.GetFallback && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		return c.do(ctx, http.MethodGet, target)
	}
	return code, nil
}

func (c *Checker) do(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
	return resp.StatusCode, nil
}

// describe turns a request failure into a short reason.
func describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, errTooManyRedirects) {
		return "redirect loop"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns failure: " + dnsErr.Name
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return "timeout"
		}
		if opErr.Op == "dial" && strings.Contains(opErr.Error(), "connection refused") {
			return "connection refused"
		}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err.Error()
	}
	return err.Error()
}
