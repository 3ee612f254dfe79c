//go:build tinygo && rp2040

package unicorn

import "galacticunicorn.com/driver/pio"

// unicornInstructions is the hand-assembled PIO micro-program that
// drives the panel's column-sink chain and row selector. It is the Go
// equivalent of what `pioasm -o go` would emit for the following
// assembly (see driver/pio/config.go for the "pioasm -o go" API this
// file targets):
//
//	.side_set 1 opt
//
//	; out pins: row select bits 0..3
//	; set pins: column data (base), column latch, column blank
//	; sideset pin: column clock
//
//	; for each row, for each BCM frame:
//	;        0: row pixel count (W-1)
//	;        1: row select bits
//	;   2 - 54: pixel bytes, xxxxxrgb
//	;       55: dummy alignment byte
//	;  56 - 59: little-endian BCM tick count
//
//	.wrap_target
//	out y, 8
//	out pins, 8
//	pixels:
//	    ; blue bit
//	    out x, 1       side 0 [1]
//	    set pins, 0b100
//	    jmp !x endb
//	    set pins, 0b101
//	endb:
//	    nop            side 1 [2]
//	    ; green bit
//	    out x, 1       side 0 [1]
//	    set pins, 0b100
//	    jmp !x endg
//	    set pins, 0b101
//	endg:
//	    nop            side 1 [2]
//	    ; red bit
//	    out x, 1       side 0 [1]
//	    set pins, 0b100
//	    jmp !x endr
//	    set pins, 0b101
//	endr:
//	    out null, 5    side 1 [2]
//	jmp y-- pixels
//	out null, 8
//	set pins, 0b110 [5]
//	set pins, 0b000
//	out y, 32
//	bcd_delay:
//	jmp y-- bcd_delay
//	set pins, 0b100
//	.wrap
var unicornInstructions = []uint16{
	0x6048, // out   y, 8
	0x6008, // out   pins, 8
	// pixels:
	0x7121, // out   x, 1        side 0 [1]
	0xE004, // set   pins, 0b100
	0x0026, // jmp   !x, endb
	0xE005, // set   pins, 0b101
	0xBA42, // endb: nop         side 1 [2]
	0x7121, // out   x, 1        side 0 [1]
	0xE004, // set   pins, 0b100
	0x002B, // jmp   !x, endg
	0xE005, // set   pins, 0b101
	0xBA42, // endg: nop         side 1 [2]
	0x7121, // out   x, 1        side 0 [1]
	0xE004, // set   pins, 0b100
	0x0030, // jmp   !x, endr
	0xE005, // set   pins, 0b101
	0x7A65, // endr: out null, 5 side 1 [2]
	0x0082, // jmp   y--, pixels
	0x6068, // out   null, 8
	0xE506, // set   pins, 0b110 [5]
	0xE000, // set   pins, 0b000
	0x6040, // out   y, 32
	0x0096, // bcd_delay: jmp y--, bcd_delay
	0xE004, // set   pins, 0b100
}

const (
	unicornProgOffset = 0
	// unicornWrapTarget and unicornWrap bound the program's wrap
	// region: the whole program is one big loop.
	unicornWrapTarget = 0
	unicornWrap       = len(unicornInstructions) - 1
)

// unicornProgramDefaultConfig returns the state-machine configuration
// shared by every Galactic Unicorn, mirroring the *ProgramDefaultConfig
// helpers pioasm emits alongside an instruction array. Pin-specific
// fields (SidesetBase, SetBase, OutBase/OutCount) are filled in by
// startScanning once the caller's pin assignment is known.
func unicornProgramDefaultConfig(offset uint8) pio.StateMachineConfig {
	c := pio.DefaultStateMachineConfig()
	c.SetWrap(offset+unicornWrapTarget, offset+uint8(unicornWrap))
	c.SetSidesetParams(1, true, false)
	c.FIFOMode = pio.FIFOJoinTX
	c.PullThreshold = 32
	c.Autopull = true
	return c
}
