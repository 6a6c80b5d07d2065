// Package log builds the slog loggers used by gopherscan.
//
// Log lines go to standard error and carry text received from remote
// servers: selectors, listing lines and host names. SanitizeHandler wraps any
// slog.Handler and escapes control characters in string attributes,
// truncates very long values and masks proxy credentials, so a hostile
// listing cannot forge or flood log lines.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
// The same logger is handed to the Gopher client, the crawler and the
// embedded Tor daemon.
package log
