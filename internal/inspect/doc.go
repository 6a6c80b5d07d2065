// Package inspect reads metadata embedded in downloaded files.
//
// Image items on Gopher servers are often photos uploaded as is, with camera,
// software and GPS tags still in their EXIF block. ImageMetadata pulls those
// tags out so they can be listed next to the file in the report.
package inspect
