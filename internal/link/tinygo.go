package link

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// NUSStack implements Stack on tinygo.org/x/bluetooth, exposing the
// standard Nordic UART Service: one write characteristic (central to
// device) and one notify characteristic (device to central).
type NUSStack struct {
	adapter *bluetooth.Adapter

	mu        sync.Mutex
	adv       *bluetooth.Advertisement
	tx        bluetooth.Characteristic
	peers     int
	enabled   bool
	svcAdded  bool
	connectCb func(connected bool)
	writeCb   func(chunk []byte)
}

var _ Stack = (*NUSStack)(nil)

// NewNUSStack returns a stack backed by the platform's default adapter.
func NewNUSStack() *NUSStack {
	return &NUSStack{adapter: bluetooth.DefaultAdapter}
}

func (s *NUSStack) SetConnectHandler(fn func(connected bool)) {
	s.mu.Lock()
	s.connectCb = fn
	s.mu.Unlock()
}

func (s *NUSStack) SetWriteHandler(fn func(chunk []byte)) {
	s.mu.Lock()
	s.writeCb = fn
	s.mu.Unlock()
}

func (s *NUSStack) Init(name string) error {
	if !s.enabled {
		if err := s.adapter.Enable(); err != nil {
			return fmt.Errorf("ble: enable adapter: %w", err)
		}
		// The adapter accepts a single connect handler for its lifetime.
		// Register it once; it maintains the peer count and fans out to
		// whatever callback is currently set.
		s.adapter.SetConnectHandler(func(_ bluetooth.Device, connected bool) {
			s.mu.Lock()
			if connected {
				s.peers++
			} else if s.peers > 0 {
				s.peers--
			}
			cb := s.connectCb
			s.mu.Unlock()
			if cb != nil {
				cb(connected)
			}
		})
		s.enabled = true
	}

	// Services cannot be unregistered on this stack, so the NUS service is
	// added once and survives Deinit; reinit rebuilds the advertisement.
	if !s.svcAdded {
		err := s.adapter.AddService(&bluetooth.Service{
			UUID: bluetooth.ServiceUUIDNordicUART,
			Characteristics: []bluetooth.CharacteristicConfig{
				{
					Handle: &s.tx,
					UUID:   bluetooth.CharacteristicUUIDUARTTX,
					Flags:  bluetooth.CharacteristicNotifyPermission,
				},
				{
					UUID: bluetooth.CharacteristicUUIDUARTRX,
					Flags: bluetooth.CharacteristicWritePermission |
						bluetooth.CharacteristicWriteWithoutResponsePermission,
					WriteEvent: func(_ bluetooth.Connection, _ int, value []byte) {
						s.mu.Lock()
						cb := s.writeCb
						s.mu.Unlock()
						if cb != nil {
							cb(value)
						}
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("ble: add NUS service: %w", err)
		}
		s.svcAdded = true
	}

	adv := s.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.ServiceUUIDNordicUART},
	}); err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}

	s.mu.Lock()
	s.adv = adv
	s.mu.Unlock()
	return nil
}

// Deinit is the closest teardown this stack offers: stop the advertisement
// and forget the handle. The adapter itself has no disable operation.
func (s *NUSStack) Deinit() error {
	s.mu.Lock()
	adv := s.adv
	s.adv = nil
	s.peers = 0
	s.mu.Unlock()

	if adv == nil {
		return nil
	}
	if err := adv.Stop(); err != nil {
		return fmt.Errorf("ble: stop advertisement: %w", err)
	}
	return nil
}

func (s *NUSStack) StartAdvertising() error {
	s.mu.Lock()
	adv := s.adv
	s.mu.Unlock()
	if adv == nil {
		return fmt.Errorf("ble: advertisement not configured")
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("ble: start advertising: %w", err)
	}
	return nil
}

func (s *NUSStack) StopAdvertising() error {
	s.mu.Lock()
	adv := s.adv
	s.mu.Unlock()
	if adv == nil {
		return nil
	}
	if err := adv.Stop(); err != nil {
		return fmt.Errorf("ble: stop advertising: %w", err)
	}
	return nil
}

func (s *NUSStack) ConnectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peers
}

func (s *NUSStack) Notify(fragment []byte) error {
	if _, err := s.tx.Write(fragment); err != nil {
		return fmt.Errorf("ble: notify: %w", err)
	}
	return nil
}
