package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. It is built once at startup
// and passed by value into each component's constructor.
type Config struct {
	Target    TargetConfig
	Browser   BrowserConfig
	Page      PageConfig
	Extract   ExtractConfig
	Links     LinksConfig
	Output    OutputConfig
	Sheet     SheetConfig
	Log       LogConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Schedule  ScheduleConfig
}

// TargetConfig describes the monitored page and the text heuristics used
// to classify what the browser got back.
type TargetConfig struct {
	// URL is the page to monitor.
	URL string // default: "https://ceo.baemin.com"

	// Cookies is an optional JSON array of cookie descriptors.
	Cookies string

	// DomainMarker is a string only the genuine page contains.
	DomainMarker string // default: "외식업"

	// BlockedKeywords signal a security interstitial or block page.
	BlockedKeywords []string

	// LoginMarker and RestrictedMarker both present after cookie
	// injection means the session was not accepted.
	LoginMarker      string // default: "로그인"
	RestrictedMarker string // default: "보안"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker and CI).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is an optional proxy URL for all browser traffic.
	Proxy string

	// UserAgent is the desktop UA presented to the target.
	UserAgent string

	// Locale is passed as --lang; AcceptLanguage is sent on every request.
	Locale         string // default: "ko-KR"
	AcceptLanguage string // default: "ko-KR,ko,en-US,en"

	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// BlockAds drops requests to well-known ad and tracking domains.
	BlockAds bool // default: false

	// CallTimeout bounds each element query and element read.
	CallTimeout time.Duration // default: 20s
}

// PageConfig controls navigation, waits and the settle-scroll routine.
type PageConfig struct {
	// LoadTimeout bounds the navigation itself.
	LoadTimeout time.Duration // default: 45s

	// ElementTimeout bounds the wait for <body>.
	ElementTimeout time.Duration // default: 20s

	// ChallengeDelay is a pause right after navigation so interstitial
	// bot checks can finish. Zero disables it.
	ChallengeDelay time.Duration // default: 10s

	// SettleDelay is the pause after <body> appears.
	SettleDelay time.Duration // default: 3s

	Scroll ScrollConfig
}

// ScrollConfig parameterises the incremental scroll that triggers
// lazy-loading observers.
type ScrollConfig struct {
	Step        int           // default: 500
	Pause       time.Duration // default: 500ms
	MaxHeight   int           // default: 5000
	ReturnPause time.Duration // default: 1s
}

// SlotGroup is one named CSS selector group.
type SlotGroup struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// ExtractConfig controls slot extraction.
type ExtractConfig struct {
	// Groups are queried in declared order.
	Groups []SlotGroup

	// GroupsFile optionally replaces Groups with a YAML list.
	GroupsFile string

	// PerGroupLimit caps how many matched elements each group considers.
	PerGroupLimit int // default: 20

	// MaxTextLength truncates slot text (in characters).
	MaxTextLength int // default: 100

	// MinTextLength skips elements whose trimmed text is shorter.
	// Zero disables the filter.
	MinTextLength int // default: 2
}

// LinksConfig controls the link health check.
type LinksConfig struct {
	// MaxLinks caps how many anchors are considered.
	MaxLinks int // default: 30

	// Timeout is the per-request deadline.
	Timeout time.Duration // default: 10s

	// RecordUnreachable records network-level failures as broken links.
	// When false they are logged and dropped.
	RecordUnreachable bool // default: true

	// Concurrency is the number of in-flight checks. 1 is strictly sequential.
	Concurrency int // default: 1

	// RequestsPerSecond paces checks globally. Zero means unlimited.
	RequestsPerSecond float64 // default: 0

	// UserAgent is sent with each check.
	UserAgent string

	// ChromeTLS dials with a Chrome TLS fingerprint.
	ChromeTLS bool // default: true

	// GetFallback retries with GET when HEAD answers 405 or 501.
	GetFallback bool // default: false
}

// OutputConfig names the per-run artifact directories.
type OutputConfig struct {
	LogsDir        string // default: "logs"
	ScreenshotsDir string // default: "screenshots"
	ResultsDir     string // default: "results"
}

// SheetConfig addresses the external tabular sink.
type SheetConfig struct {
	// SpreadsheetID selects the Google Sheets sink when set.
	SpreadsheetID string

	// SheetName is the sub-table rows are appended to.
	SheetName string // default: "모니터링로그"

	// CredentialsFile is a service-account key file.
	CredentialsFile string // default: "credentials.json"

	// CredentialsJSON is an inline service-account key; it wins over the file.
	CredentialsJSON string

	// CSVPath selects the local CSV sink when no spreadsheet is configured.
	CSVPath string

	// Timeout bounds each sink call.
	Timeout time.Duration // default: 30s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json", "text" or "tint"; default: "text"

	// File writes a copy of the log to a timestamped file in Output.LogsDir.
	File bool // default: true
}

// ServerConfig controls the slotwatchd HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool // default: true
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 2
	Burst             int     // default: 5
}

// ScheduleConfig controls slotwatchd's periodic runs.
type ScheduleConfig struct {
	// Interval between runs. Zero disables the schedule (API triggers only).
	Interval time.Duration // default: 1h

	// RunOnStart triggers a run as soon as the daemon starts.
	RunOnStart bool // default: true

	// Cron is an optional standard 5-field cron spec evaluated in KST.
	// When set it replaces Interval.
	Cron string

	// HistorySize is how many results the daemon keeps in memory.
	HistorySize int // default: 48

	// HistoryDir persists run history in a badger database so it
	// survives restarts. Empty keeps history in memory only.
	HistoryDir string
}

// DefaultSlotGroups are the built-in selector groups, in query order.
func DefaultSlotGroups() []SlotGroup {
	return []SlotGroup{
		{Name: "main_banner", Selector: `.main-banner, .banner, [class*="banner"], [class*="slide"], [class*="hero"]`},
		{Name: "content_cards", Selector: `.card, .content-card, [class*="card"], [class*="article"], [class*="post"]`},
		{Name: "menu_items", Selector: `.menu-item, .nav-item, [class*="menu"], [class*="nav"]`},
		{Name: "links", Selector: `a[href]`},
		{Name: "images", Selector: `img[src]`},
		{Name: "sections", Selector: `section, [class*="section"], [class*="container"]`},
	}
}

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Target: TargetConfig{
			URL:          envOr("TARGET_URL", "https://ceo.baemin.com"),
			Cookies:      os.Getenv("TARGET_COOKIES"),
			DomainMarker: envOr("SLOTWATCH_DOMAIN_MARKER", "외식업"),
			BlockedKeywords: envSliceOr("SLOTWATCH_BLOCKED_KEYWORDS", []string{
				"보안", "차단", "blocked", "access denied", "접근 제한",
			}),
			LoginMarker:      envOr("SLOTWATCH_LOGIN_MARKER", "로그인"),
			RestrictedMarker: envOr("SLOTWATCH_RESTRICTED_MARKER", "보안"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("SLOTWATCH_HEADLESS", true),
			NoSandbox:      envBoolOr("SLOTWATCH_NO_SANDBOX", true),
			BrowserBin:     os.Getenv("SLOTWATCH_BROWSER_BIN"),
			Proxy:          os.Getenv("SLOTWATCH_PROXY"),
			UserAgent:      envOr("SLOTWATCH_USER_AGENT", desktopUA),
			Locale:         envOr("SLOTWATCH_LOCALE", "ko-KR"),
			AcceptLanguage: envOr("SLOTWATCH_ACCEPT_LANGUAGE", "ko-KR,ko,en-US,en"),
			ViewportWidth:  envIntOr("SLOTWATCH_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("SLOTWATCH_VIEWPORT_HEIGHT", 1080),
			BlockAds:       envBoolOr("SLOTWATCH_BLOCK_ADS", false),
			CallTimeout:    envDurationOr("SLOTWATCH_BROWSER_CALL_TIMEOUT", 20*time.Second),
		},
		Page: PageConfig{
			LoadTimeout:    envDurationOr("SLOTWATCH_PAGE_LOAD_TIMEOUT", 45*time.Second),
			ElementTimeout: envDurationOr("SLOTWATCH_ELEMENT_TIMEOUT", 20*time.Second),
			ChallengeDelay: envDurationOr("SLOTWATCH_CHALLENGE_DELAY", 10*time.Second),
			SettleDelay:    envDurationOr("SLOTWATCH_SETTLE_DELAY", 3*time.Second),
			Scroll: ScrollConfig{
				Step:        envIntOr("SLOTWATCH_SCROLL_STEP", 500),
				Pause:       envDurationOr("SLOTWATCH_SCROLL_PAUSE", 500*time.Millisecond),
				MaxHeight:   envIntOr("SLOTWATCH_SCROLL_MAX_HEIGHT", 5000),
				ReturnPause: envDurationOr("SLOTWATCH_SCROLL_RETURN_PAUSE", time.Second),
			},
		},
		Extract: ExtractConfig{
			Groups:        DefaultSlotGroups(),
			GroupsFile:    os.Getenv("SLOTWATCH_SELECTORS_FILE"),
			PerGroupLimit: envIntOr("SLOTWATCH_SLOTS_PER_GROUP", 20),
			MaxTextLength: envIntOr("SLOTWATCH_SLOT_TEXT_MAX", 100),
			MinTextLength: envIntOr("SLOTWATCH_SLOT_TEXT_MIN", 2),
		},
		Links: LinksConfig{
			MaxLinks:          envIntOr("SLOTWATCH_MAX_LINKS", 30),
			Timeout:           envDurationOr("SLOTWATCH_LINK_TIMEOUT", 10*time.Second),
			RecordUnreachable: envBoolOr("SLOTWATCH_RECORD_UNREACHABLE", true),
			Concurrency:       envIntOr("SLOTWATCH_LINK_CONCURRENCY", 1),
			RequestsPerSecond: envFloatOr("SLOTWATCH_LINK_RPS", 0),
			UserAgent:         envOr("SLOTWATCH_LINK_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
			ChromeTLS:         envBoolOr("SLOTWATCH_LINK_CHROME_TLS", true),
			GetFallback:       envBoolOr("SLOTWATCH_LINK_GET_FALLBACK", false),
		},
		Output: OutputConfig{
			LogsDir:        envOr("SLOTWATCH_LOGS_DIR", "logs"),
			ScreenshotsDir: envOr("SLOTWATCH_SCREENSHOTS_DIR", "screenshots"),
			ResultsDir:     envOr("SLOTWATCH_RESULTS_DIR", "results"),
		},
		Sheet: SheetConfig{
			SpreadsheetID:   os.Getenv("SPREADSHEET_ID"),
			SheetName:       envOr("SLOTWATCH_SHEET_NAME", "모니터링로그"),
			CredentialsFile: envOr("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS"),
			CSVPath:         os.Getenv("SLOTWATCH_CSV_PATH"),
			Timeout:         envDurationOr("SLOTWATCH_SHEET_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("SLOTWATCH_LOG_LEVEL", "info"),
			Format: envOr("SLOTWATCH_LOG_FORMAT", "text"),
			File:   envBoolOr("SLOTWATCH_LOG_FILE", true),
		},
		Server: ServerConfig{
			Host: envOr("SLOTWATCH_HOST", "0.0.0.0"),
			Port: envIntOr("SLOTWATCH_PORT", 8080),
			Mode: envOr("SLOTWATCH_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SLOTWATCH_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SLOTWATCH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SLOTWATCH_RATE_RPS", 2.0),
			Burst:             envIntOr("SLOTWATCH_RATE_BURST", 5),
		},
		Schedule: ScheduleConfig{
			Interval:    envDurationOr("SLOTWATCH_INTERVAL", time.Hour),
			RunOnStart:  envBoolOr("SLOTWATCH_RUN_ON_START", true),
			Cron:        os.Getenv("SLOTWATCH_CRON"),
			HistorySize: envIntOr("SLOTWATCH_HISTORY_SIZE", 48),
			HistoryDir:  os.Getenv("SLOTWATCH_HISTORY_DIR"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
