// Package convert moves room documents between the STB and XML formats on
// disk, one file, a directory, or a watched directory at a time.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies an on-disk room document encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatSTB
	FormatXML
)

// ErrUnknownFormat is returned when a document's format cannot be determined.
var ErrUnknownFormat = errors.New("unknown room document format")

func (f Format) String() string {
	switch f {
	case FormatSTB:
		return "stb"
	case FormatXML:
		return "xml"
	}
	return "unknown"
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatSTB:
		return ".stb"
	case FormatXML:
		return ".xml"
	}
	return ""
}

// ParseFormat parses "stb" or "xml", case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "stb":
		return FormatSTB, nil
	case "xml":
		return FormatXML, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatForPath returns the format implied by path's extension.
func FormatForPath(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return FormatUnknown
	}
	return f
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat picks the format from path's extension, falling back to the
// content when the extension is not recognized. Content starting with '<'
// is XML; any other non-empty content is treated as STB, since legacy STB
// files carry no magic.
func DetectFormat(path string, data []byte) (Format, error) {
	if f := FormatForPath(path); f != FormatUnknown {
		return f, nil
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	switch {
	case len(trimmed) == 0:
		return FormatUnknown, fmt.Errorf("%s: %w: empty document", path, ErrUnknownFormat)
	case trimmed[0] == '<':
		return FormatXML, nil
	}
	return FormatSTB, nil
}
