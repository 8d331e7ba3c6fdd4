package central

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter implements Adapter on tinygo.org/x/bluetooth. On Linux the
// address strings are MAC addresses; on macOS they are CoreBluetooth UUIDs.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by address string
}

var _ Adapter = (*TinyGoAdapter)(nil)

// NewTinyGoAdapter creates an Adapter backed by the platform default.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinyGoConnection),
	}
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return fmt.Errorf("central: enable adapter: %w", err)
	}

	// The stack fires this with connected=false when a peripheral drops.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[addr]
		a.mu.Unlock()
		if ok && conn.disconnectCb != nil {
			conn.disconnectCb()
		}
	})
	return nil
}

func (a *TinyGoAdapter) FindDeviceByName(ctx context.Context, name string) (Device, error) {
	var (
		mu    sync.Mutex
		found Device
		ok    bool
	)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if result.LocalName() != name {
			return
		}
		mu.Lock()
		found = Device{
			Name:    result.LocalName(),
			Address: result.Address.String(),
			RSSI:    int(result.RSSI),
		}
		ok = true
		mu.Unlock()
		adapter.StopScan()
	})
	close(done)

	if ok {
		return found, nil
	}
	if err != nil && ctx.Err() == nil {
		return Device{}, fmt.Errorf("central: scan: %w", err)
	}
	return Device{}, fmt.Errorf("central: device %q not found: %w", name, ctx.Err())
}

func (a *TinyGoAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// The stack's Connect blocks with its own timeout; wrap it so ctx
	// cancellation returns promptly even though the dial cannot be aborted.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("central: connect to %s: %w", address, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("central: connect to %s: %w", address, res.err)
		}
		conn := &tinyGoConnection{device: res.device}
		a.mu.Lock()
		a.connections[address] = conn
		a.mu.Unlock()
		return conn, nil
	}
}

type tinyGoConnection struct {
	device       bluetooth.Device
	disconnectCb func()
}

func (c *tinyGoConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("central: parse service UUID: %w", err)
	}
	chUUID, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, fmt.Errorf("central: parse characteristic UUID: %w", err)
	}

	services, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("central: discover service %s: %w", serviceUUID, err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("central: service %s not found", serviceUUID)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{chUUID})
	if err != nil {
		return nil, fmt.Errorf("central: discover characteristic %s: %w", charUUID, err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("central: characteristic %s not found", charUUID)
	}
	return &tinyGoCharacteristic{char: chars[0]}, nil
}

func (c *tinyGoConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(callback func()) {
	c.disconnectCb = callback
}

type tinyGoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (ch *tinyGoCharacteristic) Write(data []byte) error {
	// Write without response: the framing protocol needs no per-fragment ack.
	if _, err := ch.char.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("central: write: %w", err)
	}
	return nil
}

func (ch *tinyGoCharacteristic) Subscribe(callback func(data []byte)) error {
	if err := ch.char.EnableNotifications(callback); err != nil {
		return fmt.Errorf("central: enable notifications: %w", err)
	}
	return nil
}
