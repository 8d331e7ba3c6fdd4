// Package link implements a bidirectional, line-framed message transport
// over a Nordic UART Service GATT profile. A Link owns one peripheral BLE
// connection: it reassembles newline-delimited messages from arbitrarily
// chunked writes, dispatches each line as JSON or raw text, chunks outbound
// lines into MTU-safe notify fragments, and supervises the connection
// lifecycle (advertise, connect, disconnect, re-advertise, full stack
// reinitialization when the underlying stack misbehaves).
package link

// Stack abstracts the peripheral BLE stack beneath a Link. Implementations
// absorb the underlying stack's specific callback shapes; the Link only
// sees connect/disconnect flags and inbound write chunks.
type Stack interface {
	// Init brings up the adapter, registers the NUS service and its
	// characteristics, and configures the advertisement for name.
	// It does not start advertising.
	Init(name string) error
	// Deinit tears the stack back down. Init may be called again after.
	Deinit() error
	// StartAdvertising begins broadcasting the configured advertisement.
	StartAdvertising() error
	// StopAdvertising stops the broadcast.
	StopAdvertising() error
	// ConnectedCount reports the number of currently connected centrals.
	ConnectedCount() int
	// Notify sends one fragment on the TX (notify) characteristic.
	Notify(fragment []byte) error
	// SetConnectHandler registers the callback invoked on connect (true)
	// and disconnect (false) events. Must be called before Init.
	SetConnectHandler(fn func(connected bool))
	// SetWriteHandler registers the callback invoked with each chunk
	// written to the RX characteristic. Must be called before Init.
	SetWriteHandler(fn func(chunk []byte))
}
