// Package validator decides whether a submitted URL is acceptable for
// shortening and normalizes raw user input into canonical form.
package validator

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxURLLength is the longest URL accepted, in characters.
const MaxURLLength = 2048

const (
	MsgRequired  = "URL is required"
	MsgTooLong   = "URL exceeds maximum length of 2048 characters"
	MsgMalicious = "URL contains potentially malicious content"
	MsgFormat    = "Invalid URL format"
	MsgProtocol  = "Only HTTP and HTTPS protocols are allowed"
	MsgHostname  = "URL must have a valid hostname"
)

// denylist is matched case-insensitively against the whole input.
var denylist = []string{
	"javascript:",
	"data:",
	"vbscript:",
	"file:",
	"<script",
	"onclick",
	"onerror",
}

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// Names of the rule that rejected a URL.
const (
	RuleRequired  = "required"
	RuleLength    = "max_length"
	RuleMalicious = "malicious_pattern"
	RuleFormat    = "format"
	RuleProtocol  = "protocol"
	RuleHostname  = "hostname"
)

// ValidationError carries the human readable reason a URL was rejected and
// the rule that failed.
type ValidationError struct {
	Message string
	Rule    string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks raw against the URL policy. Rules run in order and the
// first failure is returned as a *ValidationError; nil means the URL is valid.
func Validate(raw string) error {
	if raw == "" {
		return &ValidationError{Message: MsgRequired, Rule: RuleRequired}
	}

	trimmed := strings.TrimSpace(raw)

	if utf8.RuneCountInString(trimmed) > MaxURLLength {
		return &ValidationError{Message: MsgTooLong, Rule: RuleLength}
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range denylist {
		if strings.Contains(lower, pattern) {
			return &ValidationError{Message: MsgMalicious, Rule: RuleMalicious}
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() {
		return &ValidationError{Message: MsgFormat, Rule: RuleFormat}
	}

	if !allowedSchemes[parsed.Scheme] {
		return &ValidationError{Message: MsgProtocol, Rule: RuleProtocol}
	}

	if parsed.Hostname() == "" {
		return &ValidationError{Message: MsgHostname, Rule: RuleHostname}
	}

	return nil
}

// Sanitize trims raw and prepends https:// when it carries no http(s) scheme.
// Empty or whitespace-only input yields "".
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}

	return fmt.Sprintf("https://%s", trimmed)
}
