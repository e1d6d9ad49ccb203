package ft232h

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/yunginnanet/ft232h"
)

func (ft *FT232H) vidPid() (vid string, pid string) {
	vid = strconv.Itoa(int(ft.VID()))
	pid = strconv.Itoa(int(ft.PID()))

	b := bytes.NewBuffer(nil)
	h := hex.NewEncoder(b)

	if err := binary.Write(h, binary.BigEndian, ft.VID()); err == nil && len(b.String()) > 5 {
		vid = b.String()[4:]
	}

	b.Reset()

	if err := binary.Write(h, binary.BigEndian, ft.PID()); err == nil && len(b.String()) > 5 {
		pid = b.String()[4:]
	}

	return vid, pid
}

func emptyMask(mask *ft232h.Mask) bool {
	return mask == nil || (mask.Serial == "" && mask.PID == "" && mask.VID == "" && mask.Desc == "" && mask.Index == "")
}

// wordBytes packs a right-aligned payload into the MSB-first byte stream
// the MPSSE shifts out: the word is left-aligned to a whole number of
// bytes, big endian. Both device word widths are byte multiples, so the
// padding bits are never reached.
func wordBytes(payload uint32, bits uint8) []byte {
	n := (int(bits) + 7) / 8
	v := payload << (uint(n)*8 - uint(bits))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(v >> (uint(n-1-i) * 8))
	}
	return out
}
