package minecraft

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.properties")
	content := "#Minecraft server properties\n" +
		"#Mon Jan 02 15:04:05 MST 2006\n" +
		"\n" +
		"server-port=25565\n" +
		"motd=A Minecraft Server with = signs\n" +
		"broken-line-without-equals\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	props, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, "25565", props["server-port"])
	assert.Equal(t, "A Minecraft Server with = signs", props["motd"])
	assert.NotContains(t, props, "broken-line-without-equals")
	assert.Len(t, props, 2)
}

func TestSavePropertiesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.properties")
	want := map[string]string{
		"server-port":   "25565",
		"enable-rcon":   "true",
		"rcon.password": "s3cret",
	}
	require.NoError(t, SaveProperties(path, want))

	got, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSavePropertiesSortedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.properties")
	require.NoError(t, SaveProperties(path, map[string]string{
		"zebra": "1",
		"apple": "2",
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Less(t,
		strings.Index(string(data), "apple="),
		strings.Index(string(data), "zebra="))
}

func TestAcceptEULA(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AcceptEULA(dir))

	data, err := os.ReadFile(filepath.Join(dir, "eula.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "eula=true")
}

func TestParseListResponse(t *testing.T) {
	tests := []struct {
		msg   string
		names []string
		ok    bool
	}{
		{"There are 2 of a max of 20 players online: Steve, Alex", []string{"Steve", "Alex"}, true},
		{"There are 0 of a max of 20 players online:", []string{}, true},
		{"There are 1 of a max 20 players online: Steve", []string{"Steve"}, true},
		{"Steve joined the game", nil, false},
	}
	for _, tt := range tests {
		names, ok := parseListResponse(tt.msg)
		assert.Equal(t, tt.ok, ok, tt.msg)
		if tt.ok {
			assert.Equal(t, tt.names, names, tt.msg)
		}
	}
}
