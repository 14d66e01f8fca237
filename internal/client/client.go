// Package client sends single-exchange requests to a fleetwatch server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	fwerrors "github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/protocol"
	"github.com/rileyhilliard/fleetwatch/internal/registry"
	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// ErrNoResponse means the server closed the connection without replying,
// which is how rate-limited or unregistered INPUTs and malformed frames
// are dropped.
var ErrNoResponse = errors.New("server closed the connection without a response")

// maxResponseSize caps how much of a reply is read. LIST is the largest.
const maxResponseSize = 1 << 20

// DefaultTimeout bounds one exchange when none is configured.
const DefaultTimeout = 10 * time.Second

// Client talks to one server address.
type Client struct {
	addr    string
	timeout time.Duration
}

// New returns a client for addr ("host:port").
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{addr: addr, timeout: timeout}
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Send performs one exchange and returns the response text.
func (c *Client) Send(ctx context.Context, cmd protocol.Command, payload any) (string, error) {
	frame, err := protocol.Encode(cmd, payload)
	if err != nil {
		return "", fwerrors.WrapWithCode(err, fwerrors.ErrProtocol,
			"Cannot encode "+cmd.String()+" request",
			fmt.Sprintf("Requests must fit in %d bytes", protocol.MaxFrameSize))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", fwerrors.WrapWithCode(err, fwerrors.ErrNetwork,
			"Cannot reach the server at "+c.addr,
			"Check the server is running and serverAddr is right ('fleetwatch config-set serverAddr host:port')")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(frame); err != nil {
		return "", fwerrors.Wrap(err, "Failed to send "+cmd.String()+" request")
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	body, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return "", fwerrors.Wrap(err, "Failed to read the server response")
	}
	if len(body) == 0 {
		return "", ErrNoResponse
	}
	return string(body), nil
}

// Setup asks the server for a new device id.
func (c *Client) Setup(ctx context.Context) (string, error) {
	resp, err := c.Send(ctx, protocol.Setup, nil)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(resp)
	if _, err := uuid.Parse(id); err != nil {
		return "", fwerrors.New(fwerrors.ErrRegistry,
			"Server refused to register this device: "+resp,
			"Check the server logs")
	}
	return id, nil
}

// SamplePayload is the INPUT body.
type SamplePayload struct {
	DeviceID   string  `json:"deviceID"`
	DeviceName string  `json:"deviceName"`
	RAMUsed    int64   `json:"ramUsed"`
	RAMTotal   int64   `json:"ramTotal"`
	CPUUsage   float64 `json:"cpuUsage"`
	Processes  int64   `json:"processes"`
	NetworkIn  int64   `json:"networkIn"`
	NetworkOut int64   `json:"networkOut"`
	Time       int64   `json:"time"`
}

// PayloadFromSample converts a store row to its wire form.
func PayloadFromSample(s store.Sample) SamplePayload {
	return SamplePayload{
		DeviceID:   s.DeviceID,
		DeviceName: s.DeviceName,
		RAMUsed:    s.RAMUsed,
		RAMTotal:   s.RAMTotal,
		CPUUsage:   s.CPUUsage,
		Processes:  s.Processes,
		NetworkIn:  s.NetworkIn,
		NetworkOut: s.NetworkOut,
		Time:       s.Time,
	}
}

// SendSample submits one INPUT. ErrNoResponse means it was dropped.
func (c *Client) SendSample(ctx context.Context, s store.Sample) (string, error) {
	return c.Send(ctx, protocol.Input, PayloadFromSample(s))
}

// Rename renames this device.
func (c *Client) Rename(ctx context.Context, deviceID, name string) (string, error) {
	return c.Send(ctx, protocol.Rename, map[string]string{
		protocol.KeyDeviceID:   deviceID,
		protocol.KeyDeviceName: name,
	})
}

// AdminRename renames target using adminID's credential. adminID is the raw
// id; it is hashed before sending.
func (c *Client) AdminRename(ctx context.Context, adminID, target, name string) (string, error) {
	return c.Send(ctx, protocol.AdminRename, map[string]string{
		protocol.KeyDeviceID:        registry.AdminDigest(adminID),
		protocol.KeyRenamedDeviceID: target,
		protocol.KeyDeviceName:      name,
	})
}

// Remove deletes target's data and registration.
func (c *Client) Remove(ctx context.Context, adminID, target string) (string, error) {
	return c.Send(ctx, protocol.Remove, map[string]string{
		protocol.KeyDeviceID:        registry.AdminDigest(adminID),
		protocol.KeyRemovedDeviceID: target,
	})
}

// List returns the server's "name: id" listing.
func (c *Client) List(ctx context.Context, adminID string) (string, error) {
	return c.Send(ctx, protocol.List, map[string]string{
		protocol.KeyDeviceID: registry.AdminDigest(adminID),
	})
}

// Reload asks the server to re-read its registry file.
func (c *Client) Reload(ctx context.Context, adminID string) (string, error) {
	return c.Send(ctx, protocol.UpdateServer, map[string]string{
		protocol.KeyDeviceID: registry.AdminDigest(adminID),
	})
}

// Exit asks a local server to stop.
func (c *Client) Exit(ctx context.Context) (string, error) {
	return c.Send(ctx, protocol.Exit, nil)
}
