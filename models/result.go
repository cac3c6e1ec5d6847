package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// RunStatus is the overall outcome of one monitoring run.
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
	StatusBlocked RunStatus = "blocked"
	StatusError   RunStatus = "error"
)

// AccessStatus is the best-effort classification of whether the page was
// genuinely served or blocked by anti-bot measures.
type AccessStatus string

const (
	AccessUnknown AccessStatus = "unknown"
	AccessSuccess AccessStatus = "success"
	AccessBlocked AccessStatus = "blocked"
	AccessTimeout AccessStatus = "timeout"
	AccessError   AccessStatus = "error"
)

// LoginStatus classifies the page after cookie injection.
type LoginStatus string

const (
	LoginSuccess   LoginStatus = "success"
	LoginFailed    LoginStatus = "failed"
	LoginNoCookies LoginStatus = "no_cookies"
)

// KST is the reporting time zone for dates, times and file names.
var KST = time.FixedZone("KST", 9*60*60)

// SlotRecord is one extracted element of interest.
type SlotRecord struct {
	Index   string `json:"index"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	Tag     string `json:"tag"`
	Visible bool   `json:"visible"`

	// Set only for anchors; present (possibly empty) whenever Tag is "a".
	Href *string `json:"href,omitempty"`

	// Set only for images; present (possibly empty) whenever Tag is "img".
	Src *string `json:"src,omitempty"`
	Alt *string `json:"alt,omitempty"`
}

// SlotIndex formats the global slot counter.
func SlotIndex(n int) string {
	return fmt.Sprintf("S%02d", n)
}

// LinkStatus is either an HTTP status code (>= 400 for broken links) or
// the unreachable marker. It serialises as a JSON number or "unreachable".
type LinkStatus struct {
	Code        int
	Unreachable bool
}

// UnreachableMarker is the JSON form of an unreachable LinkStatus.
const UnreachableMarker = "unreachable"

// HTTPStatus builds a LinkStatus from a response status code.
func HTTPStatus(code int) LinkStatus { return LinkStatus{Code: code} }

// Unreachable is the LinkStatus of a request that never got a response.
func Unreachable() LinkStatus { return LinkStatus{Unreachable: true} }

func (s LinkStatus) String() string {
	if s.Unreachable {
		return UnreachableMarker
	}
	return strconv.Itoa(s.Code)
}

func (s LinkStatus) MarshalJSON() ([]byte, error) {
	if s.Unreachable {
		return json.Marshal(UnreachableMarker)
	}
	return json.Marshal(s.Code)
}

func (s *LinkStatus) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		*s = LinkStatus{Code: code}
		return nil
	}
	var marker string
	if err := json.Unmarshal(data, &marker); err != nil {
		return fmt.Errorf("link status: %w", err)
	}
	if marker != UnreachableMarker {
		return fmt.Errorf("link status: unexpected marker %q", marker)
	}
	*s = Unreachable()
	return nil
}

// BrokenLink is a hyperlink whose health check failed.
type BrokenLink struct {
	URL    string     `json:"url"`
	Status LinkStatus `json:"status_code"`
	Text   string     `json:"text"`
	Error  string     `json:"error,omitempty"`
}

// PageMeta carries best-effort page metadata.
type PageMeta struct {
	SiteName string `json:"site_name,omitempty"`
	Language string `json:"language,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// RunResult is the full record of one monitoring run.
type RunResult struct {
	ID              string       `json:"id"`
	Timestamp       string       `json:"timestamp"`
	Date            string       `json:"date"`
	Time            string       `json:"time"`
	URL             string       `json:"url"`
	Status          RunStatus    `json:"status"`
	AccessStatus    AccessStatus `json:"access_status"`
	LoginStatus     LoginStatus  `json:"login_status"`
	Slots           []SlotRecord `json:"slots"`
	BrokenLinks     []BrokenLink `json:"broken_links"`
	TotalSlots      int          `json:"total_slots"`
	TotalLinks      int          `json:"total_links"`
	BrokenLinkCount int          `json:"broken_link_count"`
	Errors          []string     `json:"errors"`
	Screenshot      string       `json:"screenshot,omitempty"`
	PageTitle       string       `json:"page_title,omitempty"`
	CurrentURL      string       `json:"current_url,omitempty"`
	PageMeta        *PageMeta    `json:"page_meta,omitempty"`
	DurationMs      int64        `json:"duration_ms"`
}

// NewRunResult creates a pending result stamped with now (in KST).
func NewRunResult(id, url string, now time.Time) *RunResult {
	now = now.In(KST)
	return &RunResult{
		ID:           id,
		Timestamp:    now.Format(time.RFC3339),
		Date:         now.Format("2006-01-02"),
		Time:         now.Format("15:04:05"),
		URL:          url,
		Status:       StatusPending,
		AccessStatus: AccessUnknown,
		LoginStatus:  LoginNoCookies,
		Slots:        []SlotRecord{},
		BrokenLinks:  []BrokenLink{},
		Errors:       []string{},
	}
}

// SetSlots replaces the slot list and keeps TotalSlots in step.
func (r *RunResult) SetSlots(slots []SlotRecord) {
	if slots == nil {
		slots = []SlotRecord{}
	}
	r.Slots = slots
	r.TotalSlots = len(slots)
}

// SetBrokenLinks replaces the broken-link list and keeps the counters in step.
func (r *RunResult) SetBrokenLinks(totalChecked int, broken []BrokenLink) {
	if broken == nil {
		broken = []BrokenLink{}
	}
	r.TotalLinks = totalChecked
	r.BrokenLinks = broken
	r.BrokenLinkCount = len(broken)
}

// AddError appends a human-readable error string.
func (r *RunResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Normalize re-establishes the count invariants and non-nil slices.
// The sink calls it before persisting.
func (r *RunResult) Normalize() {
	r.SetSlots(r.Slots)
	r.SetBrokenLinks(r.TotalLinks, r.BrokenLinks)
	if r.Errors == nil {
		r.Errors = []string{}
	}
}

// Succeeded reports whether the run should exit with code 0.
func (r *RunResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Truncate cuts s to at most n characters (runes). n <= 0 leaves s intact.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
