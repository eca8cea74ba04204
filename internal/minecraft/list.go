package minecraft

import (
	"regexp"
	"strings"
)

var listRe = regexp.MustCompile(`(?i)^there are (\d+) of a max(?: of)? (\d+) players online:?\s*(.*)$`)

// parseListResponse extracts player names from the response line to the
// "list" console command.
func parseListResponse(msg string) ([]string, bool) {
	m := listRe.FindStringSubmatch(msg)
	if m == nil {
		return nil, false
	}
	names := []string{}
	for _, part := range strings.Split(m[3], ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names, true
}
