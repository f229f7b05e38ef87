package bridge

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// TargetKind categorizes discovered targets.
type TargetKind string

const (
	TargetKindUSB TargetKind = "usb"
	TargetKindSim TargetKind = "simulator"
)

// TargetInfo describes a target reachable from this host.
type TargetInfo struct {
	Kind        TargetKind
	Resource    string
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
}

// Label returns a user-friendly description.
func (i TargetInfo) Label() string {
	if i.Description != "" {
		return fmt.Sprintf("%s (%s)", i.Description, i.Resource)
	}
	return i.Resource
}

// Discover enumerates attached USB bridges. It always returns the simulator
// entry last so the tools work without hardware.
func Discover(ctx context.Context) ([]TargetInfo, error) {
	var results []TargetInfo
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return desc.Vendor == VendorID && desc.Product == ProductID
	})
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		product, _ := dev.Product()
		results = append(results, TargetInfo{
			Kind:        TargetKindUSB,
			Resource:    "usb://" + serial,
			Description: product,
			VendorID:    uint16(dev.Desc.Vendor),
			ProductID:   uint16(dev.Desc.Product),
			Serial:      serial,
		})
		dev.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, TargetInfo{
		Kind:        TargetKindSim,
		Resource:    "sim://RIO0",
		Description: "Simulator (no hardware)",
	})
	return results, nil
}
