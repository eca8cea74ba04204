package console

import (
	"regexp"
	"strings"
)

// ParsedLine is the structured form of one logical console line. The
// optional fields are empty when the line does not match a recognized
// shape; Message is always populated.
type ParsedLine struct {
	Timestamp string
	Thread    string
	Level     string
	Message   string
}

// Ordered list of structural patterns; first match wins. The second form
// covers server flavors (Forge, some Paper builds) that emit an extra
// bracketed context segment before the colon.
var lineFormats = []*regexp.Regexp{
	regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\] \[([^/\]]+)/(\w+)\]: (.*)$`),
	regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\] \[([^/\]]+)/(\w+)\] \[[^\]]*\]: (.*)$`),
}

// Parse derives a ParsedLine from one logical line. Lines that match no
// known format keep only the trimmed message; the structural fields are
// never guessed.
func Parse(line string) ParsedLine {
	for _, re := range lineFormats {
		if m := re.FindStringSubmatch(line); m != nil {
			return ParsedLine{
				Timestamp: m[1],
				Thread:    m[2],
				Level:     m[3],
				Message:   m[4],
			}
		}
	}
	return ParsedLine{Message: strings.TrimSpace(line)}
}
