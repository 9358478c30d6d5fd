package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var _ ports.DaemonClient = (*Client)(nil)

// Client talks to a running daemon.
type Client struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	http    *http.Client
	baseURL string
}

// Dial creates a client for the daemon on socketPath with its HTTP API on httpAddr.
// The connection is established lazily by the first call.
func Dial(socketPath, httpAddr string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "daemon client creation failed"), "socket", socketPath)
	}

	return &Client{
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		http:    &http.Client{},
		baseURL: "http://" + httpAddr,
	}, nil
}

// Ping checks the health service and resets the daemon's inactivity timer.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDaemonNotRunning, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return zerr.With(zerr.Wrap(domain.ErrDaemonNotRunning, "daemon is not serving"), "status", resp.GetStatus().String())
	}
	return nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*ports.DaemonStatus, error) {
	var status ports.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Modules fetches the modules the daemon tracks with their current versions.
func (c *Client) Modules(ctx context.Context) ([]ModuleState, error) {
	var modules []ModuleState
	if err := c.do(ctx, http.MethodGet, "/api/modules", &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// Result fetches the most recent stored result for key.
func (c *Client) Result(ctx context.Context, key domain.TaskKey) (*domain.StoredResult, error) {
	var res domain.StoredResult
	if err := c.do(ctx, http.MethodGet, "/api/results/"+url.PathEscape(string(key)), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Shutdown asks the daemon to stop.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/shutdown", nil)
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "build daemon request"), "path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrDaemonNotRunning, err), "path", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
		return apiError(resp.StatusCode, path, body.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrMalformedOutput, err), "path", path)
	}
	return nil
}

func apiError(status int, path, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}

	var err error
	if status == http.StatusNotFound {
		err = zerr.Wrap(domain.ErrResultNotFound, msg)
	} else {
		err = zerr.New(msg)
	}
	err = zerr.With(err, "path", path)
	return zerr.With(err, "status", status)
}
