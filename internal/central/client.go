package central

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PeterHeick/BleLink/internal/link"
	"github.com/PeterHeick/BleLink/internal/link/protocol"
)

// ClientOptions configures connection retries and outbound chunking.
type ClientOptions struct {
	ConnectAttempts int           // scan+connect attempts before giving up
	RetryDelay      time.Duration // pause between attempts
	ScanTimeout     time.Duration // per-attempt scan budget
	FragmentSize    int           // max bytes per GATT write
	FragmentDelay   time.Duration // pacing between writes of one line
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		ConnectAttempts: 3,
		RetryDelay:      1500 * time.Millisecond,
		ScanTimeout:     12 * time.Second,
		FragmentSize:    protocol.DefaultFragmentSize,
		FragmentDelay:   2 * time.Millisecond,
	}
}

// Client connects to a peripheral by its advertised name and exchanges
// newline-framed messages with it. Received JSON objects go to the JSON
// handler, everything else to the raw handler.
type Client struct {
	adapter Adapter
	name    string
	opts    ClientOptions

	jsonCb func(link.Document)
	rawCb  func(string)

	mu        sync.Mutex
	conn      Connection
	rxChar    Characteristic
	connected bool
	frames    protocol.Reassembler
}

// NewClient creates a client for the peripheral advertising as name.
// Zero or negative options fall back to DefaultClientOptions values.
func NewClient(adapter Adapter, name string, opts ClientOptions) *Client {
	def := DefaultClientOptions()
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = def.ConnectAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}
	if opts.FragmentSize <= 0 {
		opts.FragmentSize = def.FragmentSize
	}
	if opts.FragmentDelay <= 0 {
		opts.FragmentDelay = def.FragmentDelay
	}
	return &Client{
		adapter: adapter,
		name:    name,
		opts:    opts,
	}
}

// OnReceiveJSON registers the handler for JSON-object lines.
// Must be called before Connect.
func (c *Client) OnReceiveJSON(fn func(link.Document)) {
	c.jsonCb = fn
}

// OnReceiveRaw registers the handler for all other lines.
// Must be called before Connect.
func (c *Client) OnReceiveRaw(fn func(string)) {
	c.rawCb = fn
}

// Connected reports whether the link is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect scans for the peripheral and connects, retrying a bounded number
// of times with a pause between attempts.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("central: enable adapter: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.ConnectAttempts; attempt++ {
		if attempt > 1 {
			slog.Info("[Central] retrying", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("central: connect: %w", ctx.Err())
			case <-time.After(c.opts.RetryDelay):
			}
		}
		if err := c.connectOnce(ctx); err != nil {
			lastErr = err
			continue
		}
		slog.Info("[Central] connected", "name", c.name)
		return nil
	}
	return fmt.Errorf("central: connect to %q after %d attempts: %w",
		c.name, c.opts.ConnectAttempts, lastErr)
}

func (c *Client) connectOnce(ctx context.Context) error {
	scanCtx, cancel := context.WithTimeout(ctx, c.opts.ScanTimeout)
	defer cancel()
	dev, err := c.adapter.FindDeviceByName(scanCtx, c.name)
	if err != nil {
		return fmt.Errorf("scan for %q: %w", c.name, err)
	}

	conn, err := c.adapter.Connect(ctx, dev.Address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", dev.Address, err)
	}

	rxChar, err := conn.DiscoverCharacteristic(ServiceUUID, RXCharUUID)
	if err != nil {
		conn.Disconnect()
		return fmt.Errorf("discover RX characteristic: %w", err)
	}
	txChar, err := conn.DiscoverCharacteristic(ServiceUUID, TXCharUUID)
	if err != nil {
		conn.Disconnect()
		return fmt.Errorf("discover TX characteristic: %w", err)
	}
	if err := txChar.Subscribe(c.handleNotification); err != nil {
		conn.Disconnect()
		return fmt.Errorf("subscribe to TX notifications: %w", err)
	}

	conn.OnDisconnect(func() {
		slog.Warn("[Central] disconnected", "name", c.name)
		c.teardown()
	})

	c.mu.Lock()
	c.conn = conn
	c.rxChar = rxChar
	c.connected = true
	c.frames.Reset()
	c.mu.Unlock()
	return nil
}

// Disconnect drops the connection and clears any partial receive data.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Disconnect()
	}
	c.teardown()
	return err
}

func (c *Client) teardown() {
	c.mu.Lock()
	c.conn = nil
	c.rxChar = nil
	c.connected = false
	c.frames.Reset()
	c.mu.Unlock()
}

// SendJSON serializes doc to one compact JSON line and writes it to the
// peripheral. Unlike the peripheral side, sending while disconnected is
// an error: the host asked for delivery and can act on the failure.
func (c *Client) SendJSON(doc link.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("central: marshal document: %w", err)
	}
	return c.sendLine(data)
}

// SendRaw writes text as one line, appending the delimiter if missing.
func (c *Client) SendRaw(text string) error {
	return c.sendLine([]byte(text))
}

func (c *Client) sendLine(line []byte) error {
	c.mu.Lock()
	rxChar := c.rxChar
	connected := c.connected
	c.mu.Unlock()
	if !connected || rxChar == nil {
		return fmt.Errorf("central: not connected")
	}

	if len(line) == 0 || line[len(line)-1] != protocol.Delimiter {
		line = append(line, protocol.Delimiter)
	}
	frags := protocol.Fragments(line, c.opts.FragmentSize)
	for i, frag := range frags {
		if err := rxChar.Write(frag); err != nil {
			return fmt.Errorf("central: write fragment %d/%d: %w", i+1, len(frags), err)
		}
		if i < len(frags)-1 {
			time.Sleep(c.opts.FragmentDelay)
		}
	}
	return nil
}

// handleNotification feeds a notified chunk through reassembly and routes
// each completed line: JSON objects to the JSON handler, the rest to the
// raw handler. A line with no registered handler is dropped.
func (c *Client) handleNotification(data []byte) {
	c.mu.Lock()
	lines := c.frames.Append(data)
	c.mu.Unlock()

	for _, line := range lines {
		var doc link.Document
		if err := json.Unmarshal([]byte(line), &doc); err == nil && doc != nil {
			if c.jsonCb != nil {
				c.jsonCb(doc)
			}
			continue
		}
		if c.rawCb != nil {
			c.rawCb(line)
		}
	}
}
