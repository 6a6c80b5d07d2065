package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultHost is crawled when no host argument is given.
	DefaultHost = "gopher.floodgap.com"

	// DefaultPort is the registered Gopher port.
	DefaultPort = 70

	// DefaultProxyAddress is the usual Tor SOCKS5 address, suggested in help
	// output for --proxy.
	DefaultProxyAddress = "127.0.0.1:9050"

	// DefaultConnectTimeout bounds TCP connection setup.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout bounds each read while a response is streaming.
	DefaultReadTimeout = 10 * time.Second

	// DefaultMaxResponseSize is the per-response ceiling (10MiB).
	DefaultMaxResponseSize = 10 * 1024 * 1024

	// DefaultCrawlDelay of zero sends requests back to back.
	DefaultCrawlDelay = time.Duration(0)

	// DefaultBatchSize crawls list targets one at a time.
	DefaultBatchSize = 1

	// DefaultTorStartupTimeout is how long the embedded Tor daemon may take
	// to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "gopherscan"
)

// Config holds every option of a crawl run. It is built from CLI flags and
// handed down explicitly; nothing reads it from global state.
type Config struct {
	// Targets are the servers to crawl, from the positional arguments or
	// from ListFile.
	Targets []Target

	// ListFile is a file of host[:port] lines.
	ListFile string

	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxResponseSize int64

	// CrawlDelay is the minimum gap between two requests of one crawl.
	CrawlDelay time.Duration

	// ProxyAddress routes every connection through a SOCKS5 proxy when set.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes through it.
	UseTor bool

	TorStartupTimeout time.Duration

	// BatchSize is the number of list targets crawled concurrently.
	BatchSize int

	// ConfigFilePath is an explicit .gopherscan path. Empty means search the
	// current and home directories.
	ConfigFilePath string

	// Servers holds the per-server overrides loaded from the config file.
	Servers *File

	// JSONReport and MarkdownReport select the report format; plain text
	// when neither is set.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the report instead of stdout.
	ReportFile string

	// Archive stores each report in the SQLite archive under DBDir.
	Archive bool
	DBDir   string

	Verbose bool
}

// NewConfig creates a Config with default values and no targets.
func NewConfig() *Config {
	return &Config{
		ConnectTimeout:    DefaultConnectTimeout,
		ReadTimeout:       DefaultReadTimeout,
		MaxResponseSize:   DefaultMaxResponseSize,
		CrawlDelay:        DefaultCrawlDelay,
		TorStartupTimeout: DefaultTorStartupTimeout,
		BatchSize:         DefaultBatchSize,
		DBDir:             XDGDataDir(),
		Servers:           NewFile(),
	}
}

// XDGDataDir returns the data directory holding the report archive.
// On Linux: ~/.local/share/gopherscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for gopherscan.
// On Linux: ~/.config/gopherscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found in c.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, t := range c.Targets {
		if t.Host == "" {
			return ErrEmptyHost
		}
		if !validPort(t.Port) {
			return ErrInvalidPort
		}
	}

	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxResponseSize <= 0 {
		return ErrInvalidMaxResponseSize
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.UseTor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Archive && c.DBDir == "" {
		return ErrNoArchiveDir
	}

	return nil
}

// ServerSettings returns the effective settings for one target: the global
// values with the config file's defaults and then the server's own entry
// applied on top.
func (c *Config) ServerSettings(t Target) ServerConfig {
	settings := ServerConfig{
		ConnectTimeout:  Duration(c.ConnectTimeout),
		ReadTimeout:     Duration(c.ReadTimeout),
		CrawlDelay:      Duration(c.CrawlDelay),
		MaxResponseSize: c.MaxResponseSize,
	}
	if c.Servers == nil {
		return settings
	}
	return settings.merge(c.Servers.GetServerConfig(t.Host, t.Port))
}
