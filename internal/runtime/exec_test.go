package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers OnData chunks and signals OnExit.
type collector struct {
	mu   sync.Mutex
	data strings.Builder
	done chan int
}

func newCollector() *collector {
	return &collector{done: make(chan int, 1)}
}

func (c *collector) onData(b []byte) {
	c.mu.Lock()
	c.data.Write(b)
	c.mu.Unlock()
}

func (c *collector) onExit(code int) { c.done <- code }

func (c *collector) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.String()
}

func (c *collector) waitExit(t *testing.T) int {
	t.Helper()
	select {
	case code := <-c.done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
		return 0
	}
}

func TestExecSpawnCapturesMergedOutput(t *testing.T) {
	col := newCollector()
	_, err := ExecLauncher{}.Spawn(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2"},
		Dir:     t.TempDir(),
		OnData:  col.onData,
		OnExit:  col.onExit,
	})
	require.NoError(t, err)

	code := col.waitExit(t)
	assert.Equal(t, 0, code)

	// OnExit fires only after the final OnData, so the output is
	// complete by now.
	out := col.output()
	assert.Contains(t, out, "out\n")
	assert.Contains(t, out, "err\n")
}

func TestExecSpawnExitCode(t *testing.T) {
	col := newCollector()
	_, err := ExecLauncher{}.Spawn(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
		Dir:     t.TempDir(),
		OnData:  col.onData,
		OnExit:  col.onExit,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, col.waitExit(t))
}

func TestExecSpawnStdin(t *testing.T) {
	col := newCollector()
	proc, err := ExecLauncher{}.Spawn(context.Background(), Spec{
		Command: "cat",
		Dir:     t.TempDir(),
		OnData:  col.onData,
		OnExit:  col.onExit,
	})
	require.NoError(t, err)

	_, err = proc.Write([]byte("hello\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(col.output(), "hello\n")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, proc.Kill())
	col.waitExit(t)
}

func TestExecSpawnUnknownCommand(t *testing.T) {
	_, err := ExecLauncher{}.Spawn(context.Background(), Spec{
		Command: "/nonexistent/binary",
		Dir:     t.TempDir(),
	})
	assert.Error(t, err)
}

func TestExecKillIdempotent(t *testing.T) {
	col := newCollector()
	proc, err := ExecLauncher{}.Spawn(context.Background(), Spec{
		Command: "sleep",
		Args:    []string{"60"},
		Dir:     t.TempDir(),
		OnData:  col.onData,
		OnExit:  col.onExit,
	})
	require.NoError(t, err)

	require.NoError(t, proc.Kill())
	require.NoError(t, proc.Kill())
	col.waitExit(t)
}
