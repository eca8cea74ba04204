package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePortMappings(t *testing.T) {
	got := ParsePortMappings([]string{
		"25565:25565/tcp",
		"25575:25575",
		"19132:19132/udp",
		"bogus",
	})
	assert.Equal(t, []PortMapping{
		{Host: "25565", Container: "25565", Protocol: "tcp"},
		{Host: "25575", Container: "25575", Protocol: "tcp"},
		{Host: "19132", Container: "19132", Protocol: "udp"},
	}, got)
}

func TestParseMemoryMB(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2G", 2048},
		{"512M", 512},
		{"1024", 1024},
		{"2g", 2048},
		{" 4G ", 4096},
		{"", 0},
		{"0", 0},
		{"junk", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseMemoryMB(tt.in), tt.in)
	}
}
