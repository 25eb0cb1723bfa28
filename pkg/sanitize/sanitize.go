// Package sanitize cleans operator-supplied text, filenames, and outgoing
// error messages before they cross a trust boundary. It is defence in depth
// for this API's own inputs, not a general-purpose HTML sanitizer.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	// MaxTextLength caps free-text fields such as TTS input.
	MaxTextLength = 5000

	// MaxFilenameLength caps sanitized filenames.
	MaxFilenameLength = 255
)

var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptTagRe    = regexp.MustCompile(`(?i)</?script\b[^>]*>`)
	jsSchemeRe     = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)

	filenameCharRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	leadingDotsRe  = regexp.MustCompile(`^\.+`)

	pathRe = regexp.MustCompile(`(?:/[^\s/]+){2,}/?`)
	hexRe  = regexp.MustCompile(`[0-9a-fA-F]{32,}`)
)

// Text strips the injection vectors this service's inputs are exposed to
// (script blocks, javascript: schemes, inline event handlers), trims
// whitespace, and clamps the result to max runes. max <= 0 applies
// MaxTextLength. The result is stable under repeated application.
func Text(s string, max int) string {
	if max <= 0 {
		max = MaxTextLength
	}

	out := strings.TrimSpace(s)
	for {
		next := scriptBlockRe.ReplaceAllString(out, "")
		next = scriptTagRe.ReplaceAllString(next, "")
		next = jsSchemeRe.ReplaceAllString(next, "")
		next = eventHandlerRe.ReplaceAllString(next, "")
		if next == out {
			break
		}
		out = next
	}
	out = strings.TrimSpace(out)

	runes := []rune(out)
	if len(runes) > max {
		out = strings.TrimSpace(string(runes[:max]))
	}
	return out
}

// Filename reduces a client-declared filename to a safe basename: every
// character outside [A-Za-z0-9._-] becomes an underscore, leading dots are
// stripped, and the result is clamped to MaxFilenameLength.
func Filename(s string) string {
	out := filenameCharRe.ReplaceAllString(strings.TrimSpace(s), "_")
	out = leadingDotsRe.ReplaceAllString(out, "")
	if len(out) > MaxFilenameLength {
		out = out[:MaxFilenameLength]
	}
	return out
}

// ErrorMessage reduces an error to a single client-safe line: only the first
// line is kept, path-shaped substrings become "[path]", and hexadecimal runs
// of 32+ characters (tokens, hashes) become "[redacted]".
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return Message(err.Error())
}

// Message applies the same redactions as ErrorMessage to a raw string.
func Message(msg string) string {
	if idx := strings.IndexAny(msg, "\r\n"); idx >= 0 {
		msg = msg[:idx]
	}
	msg = strings.TrimSpace(msg)
	msg = hexRe.ReplaceAllString(msg, "[redacted]")
	msg = pathRe.ReplaceAllString(msg, "[path]")
	return msg
}
