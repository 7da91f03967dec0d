package validator_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undeadops/snip/internal/validator"
)

func TestValidate_Accepts(t *testing.T) {
	urls := []string{
		"https://example.com",
		"http://example.com/path?q=1#frag",
		"  https://example.com/padded  ",
		"HTTPS://EXAMPLE.COM",
		"https://sub.example.co.uk:8443/a/b",
		"http://127.0.0.1:5000/x",
	}

	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			assert.NoError(t, validator.Validate(u))
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		wantMsg string
	}{
		{"empty", "", validator.MsgRequired},
		{"whitespace only", "   ", validator.MsgFormat},
		{"too long", "https://example.com/" + strings.Repeat("a", 2040), validator.MsgTooLong},
		{"javascript scheme", "javascript:alert(1)", validator.MsgMalicious},
		{"javascript mixed case", "JaVaScRiPt:alert(1)", validator.MsgMalicious},
		{"data scheme", "data:text/html,hi", validator.MsgMalicious},
		{"vbscript", "vbscript:msgbox", validator.MsgMalicious},
		{"file scheme", "file:///etc/passwd", validator.MsgMalicious},
		{"script tag in query", "https://example.com/?q=<script>", validator.MsgMalicious},
		{"onclick in path", "https://example.com/onclick", validator.MsgMalicious},
		{"onerror in query", "https://example.com/?x=ONERROR", validator.MsgMalicious},
		{"relative", "example.com", validator.MsgFormat},
		{"space in host", "https://not a url", validator.MsgFormat},
		{"ftp", "ftp://example.com", validator.MsgProtocol},
		{"mailto", "mailto:someone@example.com", validator.MsgProtocol},
		{"no host", "https://", validator.MsgHostname},
		{"port only", "https://:8080/path", validator.MsgHostname},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.url)
			require.Error(t, err)

			var vErr *validator.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.wantMsg, vErr.Message)
		})
	}
}

func TestValidate_MaliciousWinsOverStructure(t *testing.T) {
	// otherwise well formed, still rejected
	err := validator.Validate("https://example.com/redirect?to=javascript:void(0)")
	assert.EqualError(t, err, validator.MsgMalicious)
}

func TestValidate_LengthBoundary(t *testing.T) {
	base := "https://example.com/"
	exact := base + strings.Repeat("a", validator.MaxURLLength-len(base))
	require.Len(t, exact, validator.MaxURLLength)

	assert.NoError(t, validator.Validate(exact))
	assert.EqualError(t, validator.Validate(exact+"a"), validator.MsgTooLong)
}

func TestSanitize(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"example.com", "https://example.com"},
		{"  example.com/path  ", "https://example.com/path"},
		{"https://example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{" https://example.com ", "https://example.com"},
		{"HTTP://Example.com", "HTTP://Example.com"},
		{"ftp://example.com", "https://ftp://example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, validator.Sanitize(tc.in))
		})
	}
}

func TestSanitizeThenValidate(t *testing.T) {
	sanitized := validator.Sanitize("example.com")
	assert.Equal(t, "https://example.com", sanitized)
	assert.NoError(t, validator.Validate(sanitized))

	// a scheme smuggled past sanitize is still caught by the denylist
	assert.EqualError(t, validator.Validate(validator.Sanitize("javascript:alert(1)")), validator.MsgMalicious)
}

func TestValidate_ReportsRule(t *testing.T) {
	testCases := []struct {
		url  string
		rule string
	}{
		{"", validator.RuleRequired},
		{"https://example.com/" + strings.Repeat("a", 2048), validator.RuleLength},
		{"javascript:alert(1)", validator.RuleMalicious},
		{"example.com", validator.RuleFormat},
		{"ftp://example.com", validator.RuleProtocol},
		{"https://", validator.RuleHostname},
	}

	for _, tc := range testCases {
		t.Run(tc.rule, func(t *testing.T) {
			var vErr *validator.ValidationError
			require.ErrorAs(t, validator.Validate(tc.url), &vErr)
			assert.Equal(t, tc.rule, vErr.Rule)
		})
	}
}
