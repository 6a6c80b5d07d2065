// Package config holds the options of a gopherscan run: defaults, the
// .gopherscan YAML file with per-server overrides, target parsing and
// validation.
package config
