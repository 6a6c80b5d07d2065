package inspect

import (
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// ErrNoMetadata is returned when the data carries no EXIF block.
var ErrNoMetadata = errors.New("no EXIF metadata found")

// maxValueLength bounds a single formatted tag value.
const maxValueLength = 256

// reportedTags are the EXIF tags kept in the result. Everything else (thumbnails,
// maker notes, layout tags) is dropped.
var reportedTags = map[string]bool{
	"Make":              true,
	"Model":             true,
	"BodySerialNumber":  true,
	"LensModel":         true,
	"Software":          true,
	"Artist":            true,
	"Copyright":         true,
	"ImageDescription":  true,
	"DateTime":          true,
	"DateTimeOriginal":  true,
	"DateTimeDigitized": true,
	"OffsetTime":        true,
	"GPSLatitude":       true,
	"GPSLatitudeRef":    true,
	"GPSLongitude":      true,
	"GPSLongitudeRef":   true,
	"GPSAltitude":       true,
	"GPSTimeStamp":      true,
	"GPSDateStamp":      true,
}

// ImageMetadata extracts the identifying EXIF tags of an image. It returns
// ErrNoMetadata when no EXIF block is present. A malformed block is reported
// as an error rather than a panic.
func ImageMetadata(data []byte) (tags map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			tags = nil
			err = fmt.Errorf("failed to parse EXIF data: %v", r)
		}
	}()

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, ErrNoMetadata
		}
		return nil, fmt.Errorf("failed to locate EXIF data: %w", err)
	}
	if rawExif == nil {
		return nil, ErrNoMetadata
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EXIF data: %w", err)
	}

	tags = make(map[string]string)
	for _, entry := range entries {
		if !reportedTags[entry.TagName] {
			continue
		}
		value := strings.TrimSpace(entry.Formatted)
		if value == "" {
			continue
		}
		if len(value) > maxValueLength {
			value = value[:maxValueLength]
		}
		tags[entry.TagName] = value
	}

	if len(tags) == 0 {
		return nil, ErrNoMetadata
	}
	return tags, nil
}

// HasLocation reports whether tags include GPS coordinates.
func HasLocation(tags map[string]string) bool {
	_, lat := tags["GPSLatitude"]
	_, lon := tags["GPSLongitude"]
	return lat && lon
}
