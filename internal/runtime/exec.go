package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ExecLauncher runs the server as a direct child process.
type ExecLauncher struct{}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	killOnce sync.Once
	killErr  error
}

func (ExecLauncher) Spawn(ctx context.Context, spec Spec) (Process, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range spec.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// Merge stdout and stderr through a single pipe so output is
	// observed in one ordered stream by one reader goroutine.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("spawn %s: %w", spec.Command, err)
	}

	exitCode := make(chan int, 1)
	go func() {
		err := cmd.Wait()
		// Closing the write end lets the reader drain to EOF before
		// the exit code is delivered.
		pw.Close()
		code := 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else if err != nil {
			code = -1
		}
		exitCode <- code
	}()

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := pr.Read(buf)
			if n > 0 && spec.OnData != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				spec.OnData(chunk)
			}
			if err != nil {
				break
			}
		}
		if spec.OnExit != nil {
			spec.OnExit(<-exitCode)
		}
	}()

	return &execProcess{cmd: cmd, stdin: stdin}, nil
}

func (p *execProcess) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *execProcess) Kill() error {
	p.killOnce.Do(func() {
		err := p.cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.killErr = err
		}
	})
	return p.killErr
}
