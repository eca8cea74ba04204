package minecraft

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LoadProperties reads a flat key=value properties file. Blank lines
// and '#' comments are skipped; the first '=' splits key from value, so
// values may themselves contain '='.
func LoadProperties(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open properties: %w", err)
	}
	defer f.Close()

	props := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		props[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	return props, nil
}

// SaveProperties writes props to path with a leading comment block
// recording the generation time, one key=value entry per line in sorted
// key order.
func SaveProperties(path string, props map[string]string) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("#Minecraft server properties\n")
	b.WriteString("#" + time.Now().Format("Mon Jan 02 15:04:05 MST 2006") + "\n")
	for _, k := range keys {
		b.WriteString(k + "=" + props[k] + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// AcceptEULA writes an accepting eula.txt into the server directory.
func AcceptEULA(dir string) error {
	content := "#Generated by ionmc\n" +
		"#" + time.Now().Format("Mon Jan 02 15:04:05 MST 2006") + "\n" +
		"eula=true\n"
	return os.WriteFile(filepath.Join(dir, "eula.txt"), []byte(content), 0644)
}
