package rcp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/device"
)

// DefaultPort is the console's RCP listener port.
const DefaultPort = 49280

const (
	defaultDialTimeout     = 5 * time.Second
	defaultResponseTimeout = 2 * time.Second
	reconnectBase          = time.Second
	reconnectMax           = 30 * time.Second
)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithDialTimeout sets the per-attempt connect timeout. Default: 5s.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// WithResponseTimeout sets how long a dispatched line waits for the
// console's OK/ERROR reply. Default: 2s.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.respTimeout = d
	}
}

// WithLogger sets the client's logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Client is the TCP RCP transport. [Client.Run] maintains the connection
// with exponential backoff; [Client.Send] dispatches commands over it.
//
// Client is safe for concurrent use. Sends are serialized on the wire
// because RCP replies carry no correlation ID: request and reply match by
// order alone.
type Client struct {
	addr        string
	dialTimeout time.Duration
	respTimeout time.Duration
	log         *slog.Logger

	connected atomic.Bool
	closed    atomic.Bool

	mu        sync.Mutex // serializes dispatches and guards conn
	conn      net.Conn
	responses chan string
}

var _ device.Transport = (*Client)(nil)

// New returns a client for the console at addr ("host:port"). A bare host
// gets the default RCP port appended.
func New(addr string, opts ...Option) *Client {
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, DefaultPort)
	}
	c := &Client{
		addr:        addr,
		dialTimeout: defaultDialTimeout,
		respTimeout: defaultResponseTimeout,
		log:         slog.Default(),
		responses:   make(chan string, 16),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run dials the console and keeps the link alive until ctx is done,
// reconnecting with exponential backoff after failures. It always returns
// nil so it can sit directly in an errgroup.
func (c *Client) Run(ctx context.Context) error {
	backoff := reconnectBase
	for {
		if ctx.Err() != nil || c.closed.Load() {
			return nil
		}

		dialer := net.Dialer{Timeout: c.dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("rcp: connect failed", "addr", c.addr, "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		c.log.Info("rcp: connected", "addr", c.addr)
		c.setConn(conn)
		c.connected.Store(true)
		backoff = reconnectBase

		// Close the socket on shutdown so the read loop unblocks.
		watchDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-watchDone:
			}
		}()

		c.readLoop(conn)
		close(watchDone)

		c.connected.Store(false)
		c.setConn(nil)
		conn.Close()
		if ctx.Err() == nil && !c.closed.Load() {
			c.log.Warn("rcp: connection lost", "addr", c.addr)
		}
	}
}

// readLoop consumes console output until the connection drops. OK and ERROR
// replies feed the dispatch path; NOTIFY traffic (meter and state pushes) is
// discarded.
func (c *Client) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "OK"), strings.HasPrefix(line, "ERROR"):
			select {
			case c.responses <- line:
			default:
				c.log.Warn("rcp: unmatched console reply dropped", "line", line)
			}
		default:
			// NOTIFY and anything else unsolicited.
		}
	}
}

// Send implements [device.Transport].
func (c *Client) Send(ctx context.Context, cmd command.Command) <-chan device.Outcome {
	out := make(chan device.Outcome, 1)
	go func() {
		out <- c.dispatch(ctx, cmd)
	}()
	return out
}

// dispatch writes the command's lines and awaits one reply per line.
func (c *Client) dispatch(ctx context.Context, cmd command.Command) device.Outcome {
	lines := Encode(cmd)
	if len(lines) == 0 {
		c.log.Warn("rcp: command has no wire encoding", "kind", cmd.Kind)
		return device.OutcomeRejected
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn := c.conn
	if conn == nil {
		return device.OutcomeTimeout
	}

	// Drop replies left over from a timed-out dispatch.
	for {
		select {
		case <-c.responses:
			continue
		default:
		}
		break
	}

	conn.SetWriteDeadline(time.Now().Add(c.respTimeout))
	if _, err := conn.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		c.log.Warn("rcp: write failed", "error", err)
		return device.OutcomeTimeout
	}

	for range lines {
		select {
		case line := <-c.responses:
			if strings.HasPrefix(line, "ERROR") {
				c.log.Warn("rcp: console rejected command", "reply", line, "command", cmd.Describe())
				return device.OutcomeRejected
			}
		case <-time.After(c.respTimeout):
			return device.OutcomeTimeout
		case <-ctx.Done():
			return device.OutcomeTimeout
		}
	}
	return device.OutcomeAcknowledged
}

// Connected implements [device.Transport].
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close implements [device.Transport]. Run returns after Close.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.connected.Store(false)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}
