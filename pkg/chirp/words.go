package chirp

// Wire-format constants for the two programmed devices. Both devices shift
// MSB first; the synthesizer latches data on the rising clock edge while
// the DAC latches on the falling edge, so the two engines run opposite
// shift conventions.

const (
	// SynthWordBits is the width of one synthesizer configuration word.
	SynthWordBits = 32
	// DACWordBits is the width of one DAC frame.
	DACWordBits = 24

	// synthClockDivisor and diagClockDivisor are fixed; only the DAC clock
	// divisor is register-configurable.
	synthClockDivisor = 1
	diagClockDivisor  = 0

	// Per-engine one-hot chip-select lines.
	synthTarget = 0x01
	dacTarget   = 0x01
	diagTarget  = 0x01
)

// dacCmdWriteUpdate is the DAC's write-and-update-output command prefix.
// The frame layout is {8-bit command, 12-bit code, 4 zero bits}.
const dacCmdWriteUpdate uint32 = 0x30

// DACWord packs a 12-bit ramp code into the 24-bit DAC frame.
func DACWord(code uint32) uint32 {
	return dacCmdWriteUpdate<<16 | (code&0xFFF)<<4
}

// FieldSource names the dynamic value spliced into a word template.
type FieldSource uint8

const (
	FieldNone FieldSource = iota
	// FieldDivider splices the selected output divider code.
	FieldDivider
	// FieldBand splices the selected band index.
	FieldBand
)

// WordTemplate is one entry of the declarative synthesizer register map:
// a fixed template value with an optional named bit field overwritten at
// build time. Keeping the protocol constants declarative keeps them out of
// the sequencing logic.
type WordTemplate struct {
	Name     string
	Template uint32
	// Shift and Width locate the spliced field; meaningful only when
	// Source is not FieldNone.
	Shift  uint
	Width  uint
	Source FieldSource
}

// Build returns the wire word with the template's dynamic field, if any,
// overwritten by the given divider code or band value.
func (w WordTemplate) Build(divider, band uint32) uint32 {
	var v uint32
	switch w.Source {
	case FieldDivider:
		v = divider
	case FieldBand:
		v = band
	default:
		return w.Template
	}
	mask := (uint32(1)<<w.Width - 1) << w.Shift
	return w.Template&^mask | v<<w.Shift&mask
}

// SynthProgram is the fixed programming order for one chirp cycle. The low
// three bits of each word address the target register, so the words are
// sent highest register first with the double-buffered R0 last. Six words
// are constants from board bring-up; R4 carries the output divider select
// and R0 the band select.
var SynthProgram = [8]WordTemplate{
	{Name: "R7", Template: 0x00000007},
	{Name: "R6", Template: 0x00000006},
	{Name: "R5", Template: 0x00800005},
	{Name: "R4", Template: 0x00180104, Shift: 20, Width: 3, Source: FieldDivider},
	{Name: "R3", Template: 0x00000443},
	{Name: "R2", Template: 0x0040800A},
	{Name: "R1", Template: 0x00000001},
	{Name: "R0", Template: 0x80000000, Shift: 15, Width: 8, Source: FieldBand},
}

// DefaultDividerCode is the fallback output divider field value (divide by
// one) used when the selected index does not name a supported ratio.
const DefaultDividerCode uint32 = 0

var dividerCodes = [NumDividers]uint32{0, 1, 2, 3, 4, 5, 6, 7}

// DividerCode maps a divider scan index to the synthesizer's output
// divider field value (divide by 2^code). Out-of-range indices fall back
// to DefaultDividerCode rather than reporting an error.
func DividerCode(index uint) uint32 {
	if index >= NumDividers {
		return DefaultDividerCode
	}
	return dividerCodes[index]
}
