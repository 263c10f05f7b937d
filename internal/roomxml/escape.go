package roomxml

import (
	"strconv"
	"strings"
)

// attrEscaper escapes attribute values. Double quotes use the named entity
// rather than encoding/xml's numeric form because the game's parser expects
// &quot;. Whitespace control characters are written as character references
// so they survive attribute-value normalization.
var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// Escape returns s escaped for use inside a double-quoted attribute.
func Escape(s string) string {
	return attrEscaper.Replace(s)
}

// formatFloat writes f with the fewest digits that read back to the same
// float32, always keeping a decimal point.
func formatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
