package config

import "errors"

// Configuration errors returned by Validate and the loaders.
var (
	// ErrNoTarget is returned when neither a host argument nor --list gives a target.
	ErrNoTarget = errors.New("no target specified: provide a host or use --list")

	// ErrEmptyHost is returned for a target with an empty host.
	ErrEmptyHost = errors.New("empty host")

	// ErrInvalidPort is returned for a port that is not an integer in 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be an integer between 1 and 65535")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxResponseSize is returned when the response ceiling is not positive.
	ErrInvalidMaxResponseSize = errors.New("invalid max response size: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both --tor and --proxy are set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --tor and --proxy cannot be used together")

	// ErrNoArchiveDir is returned when archiving is enabled without a directory.
	ErrNoArchiveDir = errors.New("archive enabled but no data directory is set")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidDuration is returned for a config file duration that does not parse.
	ErrInvalidDuration = errors.New("invalid duration")
)
