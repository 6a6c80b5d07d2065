package gopher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Listing line errors. All of them wrap ErrMalformedLine so callers that only
// care about "skip this line" can test for that single sentinel.
var (
	// ErrMalformedLine is the parent of every line parsing error.
	ErrMalformedLine = errors.New("malformed directory line")

	// ErrEmptyLine is returned for a zero-length line.
	ErrEmptyLine = fmt.Errorf("%w: empty line", ErrMalformedLine)

	// ErrShortLine is returned when a non-info line has fewer than four fields.
	ErrShortLine = fmt.Errorf("%w: fewer than 4 fields", ErrMalformedLine)

	// ErrInvalidPort is returned when the port field is not an integer.
	ErrInvalidPort = fmt.Errorf("%w: invalid port", ErrMalformedLine)
)

// fieldSeparator separates display, selector, host and port.
const fieldSeparator = "\t"

// ParseLine parses one directory listing line.
//
// The first byte is the item type and the rest is split on tabs into display,
// selector, host and port. Info lines ('i') may carry only a display string;
// every other type needs all four fields. A fourth field, when present, must
// be numeric for every type, info lines included. Fields are
// trimmed of surrounding whitespace. Fields beyond the fourth (Gopher+ flags)
// are ignored.
func ParseLine(line string) (Item, error) {
	if line == "" {
		return Item{}, ErrEmptyLine
	}

	itemType := ItemType(line[0])
	fields := strings.Split(line[1:], fieldSeparator)

	if len(fields) < 4 {
		if itemType == TypeInfo {
			return Item{
				Type:    TypeInfo,
				Display: strings.TrimSpace(fields[0]),
			}, nil
		}
		return Item{}, ErrShortLine
	}

	port, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidPort, strings.TrimSpace(fields[3]))
	}

	return Item{
		Type:     itemType,
		Display:  strings.TrimSpace(fields[0]),
		Selector: strings.TrimSpace(fields[1]),
		Host:     strings.TrimSpace(fields[2]),
		Port:     port,
	}, nil
}
