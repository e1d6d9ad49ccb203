package ft232h

import (
	"fmt"

	"github.com/yunginnanet/ft232h"
)

// DeviceInfo represents a snapshot of the device information for the [FT232H] device.
type DeviceInfo struct {
	Index       int
	Serial      string
	Description string
	ProductID   string
	VendorID    string
	IsOpen      bool
	IsHighSpeed bool
}

// String returns a string representation of the device information.
func (ft DeviceInfo) String() string {
	return fmt.Sprintf(
		"DeviceInfo{Index:%d, Serial:%s, Description:%s, ProductID:%s, VendorID:%s, IsOpen:%t, IsHighSpeed:%t}",
		ft.Index, ft.Serial, ft.Description, ft.ProductID, ft.VendorID, ft.IsOpen, ft.IsHighSpeed,
	)
}

// FT232H represents an FT232H device.
type FT232H struct {
	*ft232h.FT232H
	info DeviceInfo
}

// Info returns a snapshot of the device information for the FT232H device. Read-only.
func (ft *FT232H) Info() DeviceInfo {
	vid, pid := ft.vidPid()
	return DeviceInfo{
		Index:       ft.Index(),
		Serial:      ft.Serial(),
		Description: ft.Desc(),
		ProductID:   pid,
		VendorID:    vid,
		IsOpen:      ft.IsOpen(),
		IsHighSpeed: ft.IsHiSpeed(),
	}
}

// String returns a string representation of the FT232H device. It includes the vendor ID, product ID, and description.
func (ft *FT232H) String() string {
	s := fmt.Sprintf("FT232H[%s:%s]: %s", ft.Info().VendorID, ft.Info().ProductID, ft.Desc())
	return s
}

// Write shifts data out over the MPSSE SPI interface. The generator boards
// have no readback path, so there is no Read counterpart.
func (ft *FT232H) Write(data []byte, start bool, stop bool) (uint, error) {
	return ft.SPI.Write(data, start, stop)
}

// Init initializes the SPI interface with its current configuration.
func (ft *FT232H) Init() error {
	return ft.SPI.Init()
}

// Close closes the SPI interface and the underlying device.
func (ft *FT232H) Close() error {
	return ft.SPI.Close()
}

// ConnectFT232h opens an FT232H device. With no arguments the first device
// found is opened; with one argument the device matching the [Descriptor]
// is opened.
func ConnectFT232h(choice ...Descriptor) (ft *FT232H, err error) {
	ft = &FT232H{}

	switch len(choice) {
	case 0:
		ft.FT232H, err = ft232h.New()
		return ft, err
	case 1:
		desc := choice[0]
		if err = choice[0].Validate(); err != nil {
			return nil, ErrBadDescriptor
		}
		ft.FT232H, err = ft232h.OpenMask(desc.Mask())
		if err == nil {
			ft.info = ft.Info()
		}
	default:
		return nil, fmt.Errorf("invalid number of arguments")
	}

	return ft, err
}
