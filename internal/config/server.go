package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "10s" or "1m30s" in the config
// file. A bare integer is read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a scalar", ErrInvalidDuration, value.Line)
	}

	if secs, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("%w: line %d: %q", ErrInvalidDuration, value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServerConfig holds overrides for one Gopher server. Zero fields mean "not
// set" and leave the global value in place.
type ServerConfig struct {
	ConnectTimeout  Duration `yaml:"connectTimeout,omitempty"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty"`
	CrawlDelay      Duration `yaml:"crawlDelay,omitempty"`
	MaxResponseSize int64    `yaml:"maxResponseSize,omitempty"`

	// IgnorePatterns are selector globs (path.Match syntax) that are never
	// fetched. A pattern ending in "/*" also covers everything below it.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// merge returns c with the non-zero fields of override applied.
func (c ServerConfig) merge(override ServerConfig) ServerConfig {
	if override.ConnectTimeout > 0 {
		c.ConnectTimeout = override.ConnectTimeout
	}
	if override.ReadTimeout > 0 {
		c.ReadTimeout = override.ReadTimeout
	}
	if override.CrawlDelay > 0 {
		c.CrawlDelay = override.CrawlDelay
	}
	if override.MaxResponseSize > 0 {
		c.MaxResponseSize = override.MaxResponseSize
	}
	if len(override.IgnorePatterns) > 0 {
		c.IgnorePatterns = override.IgnorePatterns
	}
	return c
}

// File is the structure of the .gopherscan configuration file.
type File struct {
	// Servers maps "host:port" or a bare "host" to its overrides. Keys are
	// matched case-insensitively; "host:port" wins over "host".
	Servers map[string]ServerConfig `yaml:"servers,omitempty"`

	// Defaults apply to every server before its own entry.
	Defaults ServerConfig `yaml:"defaults,omitempty"`
}

// NewFile returns an empty File.
func NewFile() *File {
	return &File{Servers: make(map[string]ServerConfig)}
}

// GetServerConfig returns the defaults merged with the entry for host:port.
func (f *File) GetServerConfig(host string, port int) ServerConfig {
	result := f.Defaults

	host = strings.ToLower(host)
	if sc, ok := f.Servers[net.JoinHostPort(host, strconv.Itoa(port))]; ok {
		return result.merge(sc)
	}
	if sc, ok := f.Servers[host]; ok {
		return result.merge(sc)
	}
	return result
}

// normalize lowercases the server keys so lookups are case-insensitive.
func (f *File) normalize() {
	servers := make(map[string]ServerConfig, len(f.Servers))
	for k, v := range f.Servers {
		servers[strings.ToLower(strings.TrimSpace(k))] = v
	}
	f.Servers = servers
}
