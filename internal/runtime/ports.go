package runtime

import (
	"strconv"
	"strings"
)

// PortMapping binds a host port to a container port.
type PortMapping struct {
	Host      string `json:"host"`
	Container string `json:"container"`
	Protocol  string `json:"protocol"`
}

// ParsePortMappings parses port strings like "25565:25565/tcp".
func ParsePortMappings(ports []string) []PortMapping {
	var result []PortMapping
	for _, p := range ports {
		proto := "tcp"
		if idx := strings.Index(p, "/"); idx != -1 {
			proto = p[idx+1:]
			p = p[:idx]
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) == 2 {
			result = append(result, PortMapping{Host: parts[0], Container: parts[1], Protocol: proto})
		}
	}
	return result
}

// ParseMemoryMB parses a memory string like "2G" or "512M" to megabytes.
func ParseMemoryMB(s string) int {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" {
		return 0
	}
	multiplier := 1
	if strings.HasSuffix(s, "G") {
		multiplier = 1024
		s = s[:len(s)-1]
	} else if strings.HasSuffix(s, "M") {
		s = s[:len(s)-1]
	}
	val, _ := strconv.Atoi(s)
	return val * multiplier
}
