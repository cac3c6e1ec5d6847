package models

import (
	"errors"
	"fmt"
)

// Error codes used in run results, logs and API responses.
const (
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeExtractionElement = "EXTRACTION_ELEMENT_FAILED"
	ErrCodeSelectorGroup     = "SELECTOR_GROUP_FAILED"
	ErrCodeLinkRequest       = "LINK_REQUEST_FAILED"
	ErrCodeSinkAuth          = "SINK_AUTH_FAILED"
	ErrCodeSinkWrite         = "SINK_WRITE_FAILED"
	ErrCodeCookieParse       = "COOKIE_PARSE_FAILED"
	ErrCodeTeardown          = "TEARDOWN_FAILED"
	ErrCodeBrowserLaunch     = "BROWSER_LAUNCH_FAILED"
	ErrCodeScreenshot        = "SCREENSHOT_FAILED"

	// API-only codes.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRunInFlight  = "RUN_IN_FLIGHT"
	ErrCodeNotFound     = "NOT_FOUND"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MonitorError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type MonitorError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *MonitorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *MonitorError) Unwrap() error {
	return e.Err
}

// NewMonitorError creates a new MonitorError.
func NewMonitorError(code, message string, err error) *MonitorError {
	return &MonitorError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *MonitorError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// Disposition says what the pipeline does with an error of a given kind.
type Disposition int

const (
	// Absorb: log it, skip the failed unit, keep going.
	Absorb Disposition = iota
	// Terminal: the stage failed; set the run status and skip later stages,
	// but still take a screenshot and persist the result.
	Terminal
	// Fatal: the run could not start at all.
	Fatal
)

func (d Disposition) String() string {
	switch d {
	case Absorb:
		return "absorb"
	case Terminal:
		return "terminal"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var errorPolicy = map[string]Disposition{
	ErrCodeExtractionElement: Absorb,
	ErrCodeSelectorGroup:     Absorb,
	ErrCodeLinkRequest:       Absorb,
	ErrCodeCookieParse:       Absorb,
	ErrCodeScreenshot:        Absorb,
	ErrCodeSinkAuth:          Absorb,
	ErrCodeSinkWrite:         Absorb,
	ErrCodeTeardown:          Absorb,
	ErrCodeNavigationTimeout: Terminal,
	ErrCodeNavigation:        Terminal,
	ErrCodeBrowserLaunch:     Fatal,
}

// DispositionOf looks up the policy for err. Errors that are not a
// MonitorError, or carry an unknown code, are treated as Fatal.
func DispositionOf(err error) Disposition {
	var me *MonitorError
	if !errors.As(err, &me) {
		return Fatal
	}
	if d, ok := errorPolicy[me.Code]; ok {
		return d
	}
	return Fatal
}

// CodeOf returns the MonitorError code in err's chain, or "".
func CodeOf(err error) string {
	var me *MonitorError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}
