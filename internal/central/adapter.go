// Package central implements the host side of the line-framed NUS link:
// scanning for a peripheral by advertised name, subscribing to its notify
// characteristic, reassembling newline-delimited messages and sending
// chunked writes the other way.
package central

import "context"

// Nordic UART Service UUIDs. RX is written by the host, TX notifies the host.
const (
	ServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	RXCharUUID  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	TXCharUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// FindDeviceByName scans until a peripheral advertising the given local
	// name is seen, or ctx is done.
	FindDeviceByName(ctx context.Context, name string) (Device, error)
	// Connect establishes a connection to the device at the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
