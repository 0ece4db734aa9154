package aurora

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/device"
)

// Dialer connects to a TCP serial bridge and returns a [Client] bound to
// the new connection.
type Dialer struct {
	// Address is the host:port of the bridge.
	Address string

	// DialTimeout bounds connection establishment. Zero means no bound
	// beyond the context.
	DialTimeout time.Duration

	// RequestTimeout bounds each request/response exchange. Zero means no
	// bound beyond the context.
	RequestTimeout time.Duration
}

// Dial opens a connection to the bridge.
func (d Dialer) Dial(ctx context.Context) (device.Conn, error) {
	nd := net.Dialer{Timeout: d.DialTimeout}
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("aurora: dial %s: %w", d.Address, err)
	}
	return NewClient(conn, d.RequestTimeout), nil
}

// Client exchanges frames over one connection. Calls are serialised.
type Client struct {
	mu             sync.Mutex
	conn           net.Conn
	requestTimeout time.Duration
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, requestTimeout time.Duration) *Client {
	return &Client{conn: conn, requestTimeout: requestTimeout}
}

// Call writes the request frame for req and reads the response frame.
//
// Errors caused by the bridge closing the connection wrap
// [device.ErrPeerClosed]. If ctx ends first, its cause is returned.
func (c *Client) Call(ctx context.Context, addr device.Address, req device.Request) (device.Response, error) {
	frame, err := EncodeRequest(addr, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
		return nil, c.wrap(ctx, err)
	}
	// unblock the exchange as soon as ctx is done
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := c.conn.Write(frame); err != nil {
		return nil, c.wrap(ctx, err)
	}
	buf := make([]byte, responseSize)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, c.wrap(ctx, err)
	}
	return DecodeResponse(req, buf)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if c.requestTimeout > 0 {
		deadline = time.Now().Add(c.requestTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

func (c *Client) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if device.IsPeerClosed(err) {
		return fmt.Errorf("aurora: %w: %w", device.ErrPeerClosed, err)
	}
	return fmt.Errorf("aurora: %w", err)
}
