package link

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PeterHeick/BleLink/internal/link/protocol"
)

// MaxNameLen bounds the advertised device name. Names longer than this are
// truncated at construction; the name never changes afterwards.
const MaxNameLen = 31

// State is the link's connection state. A Link is in exactly one state at
// any instant; transitions happen only in stack callbacks and Poll.
type State int

const (
	// StateAdvertising is the initial state after Setup or a reinit:
	// broadcasting presence, no central connected.
	StateAdvertising State = iota
	// StateConnected means a central holds the link.
	StateConnected
	// StateReinitPending means the link dropped and the next Poll will
	// rebuild the stack from scratch.
	StateReinitPending
)

func (s State) String() string {
	switch s {
	case StateAdvertising:
		return "advertising"
	case StateConnected:
		return "connected"
	case StateReinitPending:
		return "reinit-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures link timing and fragmentation.
type Options struct {
	FragmentSize   int           // max bytes per notify fragment
	FragmentDelay  time.Duration // pacing between fragments of one line
	DebounceWindow time.Duration // suppress duplicate connect/disconnect events
	SettleDelay    time.Duration // wait before deinit during reinit
	ReinitDelay    time.Duration // wait between deinit and re-init
}

// DefaultOptions returns the timing used against real BLE stacks.
func DefaultOptions() Options {
	return Options{
		FragmentSize:   protocol.DefaultFragmentSize,
		FragmentDelay:  2 * time.Millisecond,
		DebounceWindow: 300 * time.Millisecond,
		SettleDelay:    150 * time.Millisecond,
		ReinitDelay:    250 * time.Millisecond,
	}
}

// Link is the public entry point: one instance owns one peripheral BLE
// connection and all state attached to it. Register handlers with
// OnReceiveJSON/OnReceiveRaw before Setup, then call Poll on a steady
// cadence from the host's control loop.
type Link struct {
	name     string
	stack    Stack
	opts     Options
	dispatch dispatcher

	// mu guards state, the reinit flag, the debounce timestamps and the
	// receive buffer. Stack callbacks may fire on stack goroutines
	// concurrently with the poll loop.
	mu         sync.Mutex
	state      State
	needReinit bool
	lastConnAt time.Time
	lastDiscAt time.Time
	rx         protocol.Reassembler
}

// New creates a Link advertising as name over the given stack. The name is
// truncated to MaxNameLen bytes. Zero or negative Options fields fall back
// to DefaultOptions values.
func New(stack Stack, name string, opts Options) *Link {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	def := DefaultOptions()
	if opts.FragmentSize <= 0 {
		opts.FragmentSize = def.FragmentSize
	}
	if opts.FragmentDelay <= 0 {
		opts.FragmentDelay = def.FragmentDelay
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = def.DebounceWindow
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = def.SettleDelay
	}
	if opts.ReinitDelay <= 0 {
		opts.ReinitDelay = def.ReinitDelay
	}
	return &Link{
		name:  name,
		stack: stack,
		opts:  opts,
	}
}

// OnReceiveJSON registers the handler for lines that parse as JSON
// objects. Must be called before Setup.
func (l *Link) OnReceiveJSON(fn func(Document)) {
	l.dispatch.jsonCb = fn
}

// OnReceiveRaw registers the handler for lines that do not parse as JSON
// objects. Must be called before Setup.
func (l *Link) OnReceiveRaw(fn func(string)) {
	l.dispatch.rawCb = fn
}

// Name returns the advertised device name.
func (l *Link) Name() string {
	return l.name
}

// Setup brings up the BLE stack and starts advertising. A failure here is
// fatal to the session: the stack either comes up or needs intervention.
func (l *Link) Setup() error {
	l.stack.SetConnectHandler(l.handleConnectEvent)
	l.stack.SetWriteHandler(l.handleWrite)
	if err := l.stack.Init(l.name); err != nil {
		return fmt.Errorf("link: stack init: %w", err)
	}
	if err := l.stack.StartAdvertising(); err != nil {
		return fmt.Errorf("link: start advertising: %w", err)
	}
	l.mu.Lock()
	l.state = StateAdvertising
	l.mu.Unlock()
	slog.Info("[Link] advertising", "name", l.name)
	return nil
}

// Connected reports whether a central currently holds the link.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateConnected
}

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Poll drives the lifecycle and must be called on a steady cadence. It
// detects a link lost without a disconnect callback (local state says
// connected, stack says zero peers) and performs the pending full stack
// reinitialization after a disconnect. Reinit rebuilds the stack from zero
// rather than patching it: some disconnect paths leave the underlying
// advertising and service objects inconsistent, and a rebuild is the
// reliable recovery at the cost of a brief service gap.
func (l *Link) Poll() error {
	peers := l.stack.ConnectedCount()

	l.mu.Lock()
	if l.state == StateConnected && peers == 0 {
		slog.Warn("[Link] link lost without disconnect callback")
		l.state = StateReinitPending
		l.needReinit = true
		l.rx.Reset()
	}
	reinit := l.needReinit
	l.needReinit = false
	l.mu.Unlock()

	if !reinit {
		return nil
	}
	return l.reinit()
}

func (l *Link) reinit() error {
	// Let in-flight stack operations settle before tearing down.
	time.Sleep(l.opts.SettleDelay)
	if err := l.stack.Deinit(); err != nil {
		slog.Warn("[Link] stack deinit", "error", err)
	}
	time.Sleep(l.opts.ReinitDelay)
	if err := l.stack.Init(l.name); err != nil {
		return fmt.Errorf("link: reinit stack: %w", err)
	}
	if err := l.stack.StartAdvertising(); err != nil {
		return fmt.Errorf("link: restart advertising: %w", err)
	}
	l.mu.Lock()
	l.state = StateAdvertising
	l.mu.Unlock()
	slog.Info("[Link] stack reinitialized", "name", l.name)
	return nil
}

// SendJSON serializes doc to one compact JSON line and transmits it.
// Silently dropped when not connected (best-effort, at-most-once).
func (l *Link) SendJSON(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("link: marshal document: %w", err)
	}
	return l.sendLine(data)
}

// SendRaw transmits text as one line, appending the trailing newline if
// missing. Silently dropped when not connected.
func (l *Link) SendRaw(text string) error {
	return l.sendLine([]byte(text))
}

// sendLine frames line with the delimiter and notifies it as ordered
// MTU-safe fragments, pacing between fragments so the stack's transmit
// queue is not overrun.
func (l *Link) sendLine(line []byte) error {
	l.mu.Lock()
	connected := l.state == StateConnected
	l.mu.Unlock()
	if !connected {
		return nil
	}

	if len(line) == 0 || line[len(line)-1] != protocol.Delimiter {
		line = append(line, protocol.Delimiter)
	}
	frags := protocol.Fragments(line, l.opts.FragmentSize)
	for i, frag := range frags {
		if err := l.stack.Notify(frag); err != nil {
			return fmt.Errorf("link: notify fragment %d/%d: %w", i+1, len(frags), err)
		}
		if i < len(frags)-1 {
			time.Sleep(l.opts.FragmentDelay)
		}
	}
	return nil
}

// handleConnectEvent is the single connection-event entry point the stack
// adapter calls for both connects and disconnects.
func (l *Link) handleConnectEvent(connected bool) {
	if connected {
		l.handleConnect()
	} else {
		l.handleDisconnect()
	}
}

func (l *Link) handleConnect() {
	l.mu.Lock()
	if time.Since(l.lastConnAt) < l.opts.DebounceWindow {
		l.mu.Unlock()
		return
	}
	l.lastConnAt = time.Now()
	l.state = StateConnected
	l.needReinit = false
	l.mu.Unlock()

	if err := l.stack.StopAdvertising(); err != nil {
		slog.Warn("[Link] stop advertising", "error", err)
	}
	slog.Info("[Link] connected")
}

func (l *Link) handleDisconnect() {
	l.mu.Lock()
	if time.Since(l.lastDiscAt) < l.opts.DebounceWindow {
		l.mu.Unlock()
		return
	}
	l.lastDiscAt = time.Now()
	l.state = StateReinitPending
	l.needReinit = true
	// Stale partial input must never leak into the next session.
	l.rx.Reset()
	l.mu.Unlock()

	slog.Info("[Link] disconnected, restarting advertising")
	if err := l.stack.StartAdvertising(); err != nil {
		slog.Warn("[Link] restart advertising", "error", err)
	}
}

// handleWrite feeds an inbound chunk through reassembly and dispatches
// each completed line. Handlers run outside the lock so they may send.
func (l *Link) handleWrite(chunk []byte) {
	l.mu.Lock()
	lines := l.rx.Append(chunk)
	l.mu.Unlock()
	for _, line := range lines {
		l.dispatch.dispatch(line)
	}
}
