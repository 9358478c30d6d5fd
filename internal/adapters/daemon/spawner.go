package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	pollInterval    = 100 * time.Millisecond
	maxPollDuration = 5 * time.Second
)

// Connector returns a client for the daemon of a project, starting it when needed.
type Connector struct {
	executablePath string
	httpAddr       string
	socketPath     string
}

// NewConnector creates a Connector that starts the daemon with executablePath.
func NewConnector(executablePath, httpAddr string) *Connector {
	return &Connector{executablePath: executablePath, httpAddr: httpAddr}
}

// WithSocketPath replaces the project local socket path.
func (c *Connector) WithSocketPath(path string) *Connector {
	c.socketPath = path
	return c
}

// SocketPath returns the socket the daemon of root listens on.
func (c *Connector) SocketPath(root string) string {
	if c.socketPath != "" {
		return c.socketPath
	}
	return domain.DefaultSocketPath(root)
}

// Connect returns a client for the daemon under root, spawning it if it does not answer.
func (c *Connector) Connect(ctx context.Context, root string) (*Client, error) {
	if client, ok := c.running(ctx, root); ok {
		return client, nil
	}

	if err := c.Spawn(ctx, root); err != nil {
		return nil, err
	}

	client, ok := c.running(ctx, root)
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrDaemonNotRunning, "daemon started but is not responsive"), "root", root)
	}
	return client, nil
}

// IsRunning reports whether the daemon under root answers a ping within a second.
func (c *Connector) IsRunning(ctx context.Context, root string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	client, ok := c.running(ctx, root)
	if ok {
		_ = client.Close()
	}
	return ok
}

func (c *Connector) running(ctx context.Context, root string) (*Client, bool) {
	client, err := Dial(c.SocketPath(root), c.httpAddr)
	if err != nil {
		return nil, false
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, false
	}
	return client, true
}

// Spawn starts "garden daemon serve" for root in its own session and waits until it answers.
func (c *Connector) Spawn(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return zerr.Wrap(err, "failed to resolve absolute root path")
	}

	if err := os.MkdirAll(filepath.Join(absRoot, domain.GardenDirName), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create daemon directory")
	}

	logPath := domain.DefaultDaemonLogPath(absRoot)
	//nolint:gosec // logPath is the project root joined with a fixed name
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, domain.PrivateFilePerm)
	if err != nil {
		return zerr.Wrap(err, "failed to open daemon log")
	}

	//nolint:gosec // the executable is our own binary and the arguments are literals
	cmd := exec.Command(c.executablePath, "daemon", "serve")
	cmd.Dir = absRoot
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		err = zerr.With(zerr.Wrap(err, "spawn daemon"), "executable", c.executablePath)
		return fmt.Errorf("%w: %w", domain.ErrDaemonStartFailed, err)
	}

	go func() {
		_ = cmd.Wait()
		_ = logFile.Close()
	}()

	return c.waitForStartup(ctx, absRoot)
}

func (c *Connector) waitForStartup(ctx context.Context, root string) error {
	deadline := time.Now().Add(maxPollDuration)
	for time.Now().Before(deadline) {
		if c.IsRunning(ctx, root) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return zerr.With(zerr.Wrap(domain.ErrDeadlineExceeded, "daemon failed to start in time"), "root", root)
}
