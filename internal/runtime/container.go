package runtime

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// ContainerLauncher runs the server inside a Docker container, with the
// server's data directory bind-mounted at /data. The attach stream
// provides the same write/onData surface as a local child process.
type ContainerLauncher struct {
	cli   *client.Client
	image string
}

func NewContainerLauncher(image string) (*ContainerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &ContainerLauncher{cli: cli, image: image}, nil
}

func (l *ContainerLauncher) Close() error {
	return l.cli.Close()
}

// PullImage fetches the launcher's image if it is not present locally.
func (l *ContainerLauncher) PullImage(ctx context.Context) error {
	reader, err := l.cli.ImagePull(ctx, l.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (l *ContainerLauncher) Spawn(ctx context.Context, spec Spec) (Process, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}
	for _, p := range spec.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		containerPort := nat.Port(p.Container + "/" + proto)
		exposedPorts[containerPort] = struct{}{}
		portBindings[containerPort] = []nat.PortBinding{{HostPort: p.Host}}
	}

	hostCfg := &container.HostConfig{
		PortBindings: portBindings,
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: spec.Dir,
			Target: "/data",
		}},
	}
	if spec.MemoryMB > 0 {
		hostCfg.Memory = int64(spec.MemoryMB) << 20
	}

	created, err := l.cli.ContainerCreate(ctx, &container.Config{
		Image:        l.image,
		Cmd:          append([]string{spec.Command}, spec.Args...),
		WorkingDir:   "/data",
		Env:          env,
		ExposedPorts: exposedPorts,
		Tty:          true,
		OpenStdin:    true,
		AttachStdin:  true,
	}, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	id := created.ID

	attach, err := l.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		l.remove(id)
		return nil, fmt.Errorf("attach container: %w", err)
	}

	// Registered before start so the exit status cannot be missed.
	waitCh, waitErrCh := l.cli.ContainerWait(context.Background(), id, container.WaitConditionNotRunning)

	if err := l.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		attach.Close()
		l.remove(id)
		return nil, fmt.Errorf("start container: %w", err)
	}

	go func() {
		// Tty is on, so the attach stream is raw output with no
		// stdout/stderr multiplexing headers.
		buf := make([]byte, 4096)
		for {
			n, err := attach.Reader.Read(buf)
			if n > 0 && spec.OnData != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				spec.OnData(chunk)
			}
			if err != nil {
				break
			}
		}

		code := -1
		select {
		case res := <-waitCh:
			code = int(res.StatusCode)
		case <-waitErrCh:
		}
		attach.Close()
		l.remove(id)
		if spec.OnExit != nil {
			spec.OnExit(code)
		}
	}()

	return &containerProcess{cli: l.cli, id: id, attach: attach}, nil
}

func (l *ContainerLauncher) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	l.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

type containerProcess struct {
	cli    *client.Client
	id     string
	attach types.HijackedResponse
}

func (p *containerProcess) Write(b []byte) (int, error) {
	return p.attach.Conn.Write(b)
}

func (p *containerProcess) Kill() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := p.cli.ContainerKill(ctx, p.id, "SIGKILL")
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("kill container: %w", err)
	}
	return nil
}
