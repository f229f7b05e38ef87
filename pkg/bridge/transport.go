package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

//go:generate mockgen -source=transport.go -destination=mock_transport_test.go -package=bridge

// Transport moves whole frames to and from a bridge.
type Transport interface {
	Write(ctx context.Context, frame []byte) error
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

const (
	// VendorID and ProductID identify the RIO USB bridge (pid.codes test range).
	VendorID  = 0x1209
	ProductID = 0x7210

	// DefaultTimeout bounds one bulk transfer.
	DefaultTimeout = 5 * time.Second
)

// ErrNoBridge is returned when no matching USB device is attached.
var ErrNoBridge = errors.New("bridge: no usb bridge found")

// USBTransport talks to a bridge over the bulk endpoints of its vendor
// interface.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	timeout time.Duration
	serial  string

	mu      sync.Mutex
	readBuf []byte
}

// NewUSBTransport opens the bridge with the given serial number, or the first
// bridge found when serial is empty.
func NewUSBTransport(serial string) (*USBTransport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorID && desc.Product == ProductID
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("bridge: usb: %w", err)
	}

	var dev *gousb.Device
	var devSerial string
	for _, d := range devs {
		s, _ := d.SerialNumber()
		if dev == nil && (serial == "" || s == serial) {
			dev, devSerial = d, s
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		if serial != "" {
			return nil, fmt.Errorf("%w: serial %q", ErrNoBridge, serial)
		}
		return nil, ErrNoBridge
	}

	// Not supported on every platform.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{
		ctx:     ctx,
		dev:     dev,
		timeout: DefaultTimeout,
		serial:  devSerial,
		readBuf: make([]byte, ResponseHeaderSize+MaxPayload),
	}
	if err := t.claimInterface(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *USBTransport) claimInterface() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("bridge: usb config: %w", err)
	}
	t.cfg = cfg

	num := 0
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			num = intf.Number
			break
		}
	}
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		return fmt.Errorf("bridge: claim interface %d: %w", num, err)
	}
	t.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outNum == 0 {
				outNum = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inNum == 0 {
				inNum = ep.Number
			}
		}
	}
	if outNum == 0 || inNum == 0 {
		return fmt.Errorf("bridge: interface %d has no bulk endpoint pair", num)
	}

	if t.epOut, err = intf.OutEndpoint(outNum); err != nil {
		return fmt.Errorf("bridge: open OUT endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(inNum); err != nil {
		return fmt.Errorf("bridge: open IN endpoint: %w", err)
	}
	return nil
}

// Serial returns the serial number of the opened bridge.
func (t *USBTransport) Serial() string { return t.serial }

// SetTimeout changes the per-transfer timeout.
func (t *USBTransport) SetTimeout(d time.Duration) { t.timeout = d }

func (t *USBTransport) Write(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	n, err := t.epOut.WriteContext(ctx, frame)
	if err != nil {
		return fmt.Errorf("bridge: usb write: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("bridge: usb write: short write %d of %d bytes", n, len(frame))
	}
	return nil
}

func (t *USBTransport) Read(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.epIn.ReadContext(ctx, t.readBuf)
	if err != nil {
		return nil, fmt.Errorf("bridge: usb read: %w", err)
	}
	return append([]byte(nil), t.readBuf[:n]...), nil
}

// Close releases the interface, device and USB context.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
