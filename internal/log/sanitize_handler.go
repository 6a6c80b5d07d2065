package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaskValue replaces credential values.
const MaskValue = "***REDACTED***"

// MaxValueLength is the longest string attribute written unchanged. Longer
// values are cut and marked with TruncatedSuffix.
const MaxValueLength = 512

// TruncatedSuffix marks a cut value.
const TruncatedSuffix = "...(truncated)"

// sensitiveKeywords mark attribute keys whose value is never logged. Proxy
// URLs and the Tor control port are the only places credentials can appear.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "cookie",
}

// sensitivePatterns match credential values regardless of key.
var sensitivePatterns = []*regexp.Regexp{
	// user:password in a proxy URL
	regexp.MustCompile(`(?i)^(socks5h?|https?)://[^/\s:@]+:[^/\s@]+@`),

	// Tor control port authentication
	regexp.MustCompile(`(?i)^AUTHENTICATE\s+\S+`),

	// ed25519v1 secret (onion service key)
	regexp.MustCompile(`== ed25519v1-secret:`),
}

// controlEscaper escapes the control characters that would break a log line.
var controlEscaper = strings.NewReplacer(
	"\r", `\r`,
	"\n", `\n`,
	"\t", `\t`,
	"\x1b", `\x1b`,
	"\x00", `\x00`,
)

// SanitizeHandler wraps an slog.Handler and cleans attribute values before
// they reach it. Selectors, listing lines and hosts come from remote servers,
// so string values have control characters escaped and are truncated to
// MaxValueLength. Credential-like values are masked.
type SanitizeHandler struct {
	handler slog.Handler
}

// NewSanitizeHandler creates a SanitizeHandler wrapping handler. A nil
// handler means slog.Default().Handler().
func NewSanitizeHandler(handler slog.Handler) *SanitizeHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SanitizeHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SanitizeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *SanitizeHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with the sanitized attributes added.
func (h *SanitizeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = sanitizeAttr(a)
	}
	return &SanitizeHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a handler with the given group name.
func (h *SanitizeHandler) WithGroup(name string) slog.Handler {
	return &SanitizeHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		return slog.String(a.Key, SanitizeString(s))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, SanitizeString(err.Error()))
		}
	}

	return a
}

// SanitizeString escapes control characters and truncates s to
// MaxValueLength bytes on a rune boundary.
func SanitizeString(s string) string {
	s = controlEscaper.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return utf8.RuneError
		}
		return r
	}, s)

	if len(s) <= MaxValueLength {
		return s
	}
	cut := MaxValueLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncatedSuffix
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewLogger creates a text logger writing to w through a SanitizeHandler.
// The level is Info, or Debug when verbose is set.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSanitizeHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewJSONLogger is NewLogger with JSON output.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSanitizeHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
