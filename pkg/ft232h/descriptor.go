package ft232h

import (
	"fmt"
	"strconv"

	"github.com/yunginnanet/ft232h"
)

// Descriptor represents a descriptor for the FT232H device. It is used to uniquely identify the device for connection.
type Descriptor struct {
	Index  int
	Serial string
	mask   *ft232h.Mask
}

var ErrBadDescriptor = fmt.Errorf("invalid FT232H descriptor provided")

// Validate checks if [Descriptor] is valid.
func (ftd Descriptor) Validate() error {
	if ftd.Index < 0 && ftd.Serial == "" && emptyMask(ftd.mask) {
		return ErrBadDescriptor
	}
	return nil
}

// Mask returns a pointer to the [ft232h.Mask] representation of the [Descriptor].
func (ftd Descriptor) Mask() *ft232h.Mask {
	if ftd.mask == nil {
		ftd.mask = new(ft232h.Mask)
	}
	if ftd.Serial != "" {
		ftd.mask.Serial = ftd.Serial
	}
	if ftd.Index >= 0 {
		ftd.mask.Index = strconv.Itoa(ftd.Index)
	}
	return ftd.mask
}

// String returns a string representation of the [Descriptor].
func (ftd Descriptor) String() string {
	return fmt.Sprintf("Descriptor{Index:%d, Serial:%s, mask:%v}", ftd.Index, ftd.Serial, ftd.mask)
}

// ByIndex returns a [Descriptor] with the specified index.
func ByIndex(index int) Descriptor {
	return Descriptor{Index: index}
}

// BySerial returns a [Descriptor] with the specified serial number.
func BySerial(serial string) Descriptor {
	return Descriptor{Serial: serial, Index: -1}
}

// ByMask returns a [Descriptor] with the specified mask.
func ByMask(mask *ft232h.Mask) Descriptor {
	return Descriptor{mask: mask, Index: -1}
}
