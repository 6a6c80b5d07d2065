package gopher

import (
	"net"
	"strconv"
)

// DefaultPort is the well-known Gopher port.
const DefaultPort = 70

// ItemType is the single-character type tag that starts every directory line.
type ItemType byte

// Item types defined by RFC 1436 and the common extensions seen in the wild.
const (
	TypeText      ItemType = '0'
	TypeDirectory ItemType = '1'
	TypeCSO       ItemType = '2'
	TypeError     ItemType = '3'
	TypeBinHex    ItemType = '4'
	TypeDOSBinary ItemType = '5'
	TypeUUEncoded ItemType = '6'
	TypeSearch    ItemType = '7'
	TypeTelnet    ItemType = '8'
	TypeBinary    ItemType = '9'
	TypeMirror    ItemType = '+'
	TypeTN3270    ItemType = 'T'
	TypeGIF       ItemType = 'g'
	TypeImage     ItemType = 'I'
	TypeHTML      ItemType = 'h'
	TypeInfo      ItemType = 'i'

	// Non-standard but widely served.
	TypePNG      ItemType = 'p'
	TypeBitmap   ItemType = ':'
	TypeSound    ItemType = 's'
	TypeDocument ItemType = 'd'
)

// Class groups item types by how the crawler treats them.
type Class int

const (
	// ClassUnknown is any tag the crawler does not recognize. Such items are logged and ignored.
	ClassUnknown Class = iota
	// ClassDirectory items are enqueued and listed.
	ClassDirectory
	// ClassText items are downloaded and counted as text files.
	ClassText
	// ClassBinary items are downloaded and counted as binary files.
	ClassBinary
	// ClassError items are counted as invalid references.
	ClassError
	// ClassInfo items are display-only lines.
	ClassInfo
	// ClassInteractive items need a session (search, telnet, ...) and are only acknowledged.
	ClassInteractive
)

// String returns the lowercase class name used in logs and reports.
func (c Class) String() string {
	switch c {
	case ClassDirectory:
		return "directory"
	case ClassText:
		return "text"
	case ClassBinary:
		return "binary"
	case ClassError:
		return "error"
	case ClassInfo:
		return "info"
	case ClassInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// Class returns the crawl class of the item type.
func (t ItemType) Class() Class {
	switch t {
	case TypeDirectory:
		return ClassDirectory
	case TypeText:
		return ClassText
	case TypeBinary, TypeBinHex, TypeDOSBinary, TypeUUEncoded,
		TypeGIF, TypeImage, TypePNG, TypeBitmap, TypeSound, TypeDocument:
		return ClassBinary
	case TypeError:
		return ClassError
	case TypeInfo:
		return ClassInfo
	case TypeSearch, TypeTelnet, TypeTN3270, TypeHTML, TypeCSO:
		return ClassInteractive
	default:
		return ClassUnknown
	}
}

// IsImage reports whether the type carries image data.
func (t ItemType) IsImage() bool {
	switch t {
	case TypeGIF, TypeImage, TypePNG, TypeBitmap:
		return true
	default:
		return false
	}
}

// String returns the tag as a one-character string.
func (t ItemType) String() string {
	return string(rune(t))
}

// Item is one parsed directory listing entry.
type Item struct {
	Type     ItemType
	Display  string
	Selector string
	Host     string
	Port     int
}

// Address returns "host:port" for the server the item points to.
func (it Item) Address() string {
	return net.JoinHostPort(it.Host, strconv.Itoa(it.Port))
}
