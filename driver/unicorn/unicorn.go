//go:build tinygo && rp2040

// Package unicorn implements a driver for the Pimoroni Galactic
// Unicorn, a 53x11 RGB LED matrix driven by a constant-current column
// sink chain and row multiplexing, using the RP2040's PIO and DMA
// peripherals to scan the panel with binary-code modulation.
package unicorn

import (
	"device/rp"
	"errors"
	"fmt"
	"machine"
	"time"
	"unsafe"

	"galacticunicorn.com/bitstream"
	"galacticunicorn.com/driver/dma"
	"galacticunicorn.com/driver/pio"
)

// ErrProgramTooLarge is returned by [New] if the PIO micro-program
// does not fit the 32-instruction instruction memory at the requested
// load offset.
var ErrProgramTooLarge = errors.New("unicorn: pio program does not fit instruction memory")

const pioInstructionMemSize = 32

// Config describes the pin assignment and peripheral selection for a
// Galactic Unicorn board. The zero value is not a valid configuration;
// use [DefaultConfig] and override individual fields as needed.
type Config struct {
	PIO *rp.PIO0_Type
	SM  uint8

	ColumnClock machine.Pin // sideset pin, drives the sink chain's shift clock
	ColumnData  machine.Pin // set pin bit 0
	ColumnLatch machine.Pin // set pin bit 1
	ColumnBlank machine.Pin // set pin bit 2
	RowBase     machine.Pin // first of 4 contiguous row-select pins

	LightSensor machine.ADC
}

// DefaultConfig returns the pin assignment of a stock Galactic
// Unicorn board.
func DefaultConfig() Config {
	return Config{
		PIO:         rp.PIO0,
		SM:          0,
		ColumnClock: 13,
		ColumnData:  14,
		ColumnLatch: 15,
		ColumnBlank: 16,
		RowBase:     17,
		LightSensor: machine.ADC{Pin: 28},
	}
}

// Device is a handle to a configured Galactic Unicorn panel. Its
// bitstream buffer is the backing store for a DMA transfer that a
// completion interrupt continuously re-triggers; callers mutate it
// through [Device.SetPixels] rather than holding their own copy.
type Device struct {
	cfg    Config
	stream bitstream.Stream

	dmaChannel dma.ChannelID
	dmaIRQ     dma.IRQ
	brightness uint8
}

// New brings up a Galactic Unicorn panel: it initializes the
// bitstream buffer, bit-bangs the column sink chain's power-on
// sequence, hands the column and row pins to the PIO block, loads and
// starts the scan-out micro-program, and arms a DMA transfer that a
// completion interrupt keeps re-triggering to feed the program's FIFO
// indefinitely.
func New(cfg Config) (*Device, error) {
	if len(unicornInstructions) > pioInstructionMemSize-unicornProgOffset {
		return nil, ErrProgramTooLarge
	}

	d := &Device{cfg: cfg, brightness: 255}
	d.stream.Init()

	if err := d.bringUp(); err != nil {
		return nil, err
	}
	if err := d.startScanning(); err != nil {
		return nil, err
	}
	return d, nil
}

// bringUp configures the column and row pins as plain GPIO, drives
// the row-select lines high and the column control lines to their
// documented idle levels, and bit-bangs the sink chain's
// constant-current configuration word into the shift register chain
// per the chips' power-on sequence: nine unlatched shifts of 0xFFCE
// followed by a tenth shift latched after its 12th bit.
func (d *Device) bringUp() error {
	clock := d.cfg.ColumnClock
	data := d.cfg.ColumnData
	latch := d.cfg.ColumnLatch
	blank := d.cfg.ColumnBlank

	for _, pin := range []machine.Pin{clock, data, latch, blank} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	for i := 0; i < 4; i++ {
		pin := d.cfg.RowBase + machine.Pin(i)
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.High()
	}

	blank.High()
	latch.Low()
	clock.Low()
	data.Low()

	time.Sleep(100 * time.Millisecond)

	const bringupWord = 0xFFCE
	for i := 0; i < 9; i++ {
		shiftBringupWord(data, clock, latch, bringupWord, -1)
	}
	shiftBringupWord(data, clock, latch, bringupWord, 11)

	return nil
}

// shiftBringupWord shifts word MSB-first into the sink chain over 16
// clock edges. If latchAfterBit is non-negative, the latch pin is
// pulsed immediately after that bit (0-indexed from the MSB) is
// shifted in.
func shiftBringupWord(data, clock, latch machine.Pin, word uint16, latchAfterBit int) {
	const edge = 10 * time.Microsecond
	for i := 0; i < 16; i++ {
		bit := (word >> uint(15-i)) & 1
		data.Set(bit != 0)
		time.Sleep(edge)
		clock.High()
		time.Sleep(edge)
		clock.Low()
		if i == latchAfterBit {
			latch.High()
			time.Sleep(edge)
			latch.Low()
		}
	}
}

// startScanning hands the column and row pins to the PIO block,
// loads the scan-out micro-program, enables its state machine, reserves
// a DMA channel and completion interrupt, and arms the first transfer
// out of the bitstream buffer.
func (d *Device) startScanning() error {
	p, sm := d.cfg.PIO, d.cfg.SM

	pio.ConfigurePins(p, sm, d.cfg.ColumnClock, 1)
	pio.ConfigurePins(p, sm, d.cfg.ColumnData, 3)
	pio.ConfigurePins(p, sm, d.cfg.RowBase, 4)
	pio.Pindirs(p, sm, d.cfg.ColumnClock, 1, machine.PinOutput)
	pio.Pindirs(p, sm, d.cfg.ColumnData, 3, machine.PinOutput)
	pio.Pindirs(p, sm, d.cfg.RowBase, 4, machine.PinOutput)

	pio.Program(p, unicornProgOffset, unicornInstructions)

	conf := unicornProgramDefaultConfig(unicornProgOffset)
	conf.SidesetBase = uint8(d.cfg.ColumnClock)
	conf.SetBase = uint8(d.cfg.ColumnData)
	conf.SetCount = 3
	conf.OutBase = uint8(d.cfg.RowBase)
	conf.OutCount = 4
	conf.Freq = machine.CPUFrequency()

	pio.Configure(p, sm, conf.Build())
	pio.Enable(p, 0b1<<sm)

	ch, err := dma.ReserveChannel()
	if err != nil {
		return fmt.Errorf("unicorn: %w", err)
	}
	d.dmaChannel = ch

	irqNum, err := dma.ReserveIRQ()
	if err != nil {
		return fmt.Errorf("unicorn: %w", err)
	}
	d.dmaIRQ = irqNum
	d.dmaIRQ.Set(d.dmaChannel, d.refill)

	d.armRing()
	return nil
}

// DMA CTRL_TRIG bit layout, RP2040 datasheet section 2.5.3.
const (
	ctrlEn           = 1 << 0
	ctrlDataSizeWord = 0b10 << 2
	ctrlIncrRead     = 1 << 4
	ctrlIncrWrite    = 1 << 5
	ctrlChainToPos   = 11
	ctrlTreqSelPos   = 15
)

// armRing performs the one-time setup of the reserved DMA channel:
// it points the channel at the bitstream buffer and the PIO state
// machine's TX FIFO and triggers the first transfer. The RP2040 has no
// hardware mechanism for a channel to chain to itself — CTRL_TRIG's
// CHAIN_TO field set to a channel's own number is the documented idiom
// for disabling chaining, not for building a ring — so CHAIN_TO is
// left at that no-op value here and every subsequent lap is instead
// re-triggered by refill from the channel's completion interrupt, the
// same technique the teacher's mjolnir2.Device.transfer uses.
func (d *Device) armRing() {
	ch := dma.ChannelAt(d.dmaChannel)
	words := d.stream.Words()

	ch.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&words[0]))))
	ch.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(pio.Tx(d.cfg.PIO, d.cfg.SM)))))
	ch.TRANS_COUNT.Set(uint32(len(words)))

	dreq := pio.DreqTx(d.cfg.PIO, d.cfg.SM)
	ctrl := uint32(ctrlEn|ctrlDataSizeWord|ctrlIncrRead) |
		uint32(d.dmaChannel)<<ctrlChainToPos | // don't chain; refill is IRQ-driven
		dreq<<ctrlTreqSelPos
	ch.CTRL_TRIG.Set(ctrl)
}

// refill is the DMA completion-interrupt callback. It re-triggers the
// channel from the start of the bitstream buffer via the
// AL3_READ_ADDR_TRIG alias, which sets READ_ADDR and starts a new
// transfer using the WRITE_ADDR/TRANS_COUNT/CTRL values armRing
// already put in place.
func (d *Device) refill() {
	ch := dma.ChannelAt(d.dmaChannel)
	ch.AL3_READ_ADDR_TRIG.Set(uint32(uintptr(unsafe.Pointer(&d.stream.Words()[0]))))
}

// SetPixels copies src into the bitstream buffer at the device's
// current brightness. src's bounds need not match the panel's; pixels
// outside [0,Width)x[0,Height) are ignored.
func (d *Device) SetPixels(src bitstream.PixelSource) {
	d.stream.SetPixels(src, d.brightness)
}

// SetBrightness sets the global brightness scale applied to every
// subsequent [Device.SetPixels] call. It does not affect pixels
// already written.
func (d *Device) SetBrightness(v uint8) {
	d.brightness = v
}

// IncreaseBrightness raises the brightness scale by step, saturating
// at 255.
func (d *Device) IncreaseBrightness(step uint8) {
	sum := uint16(d.brightness) + uint16(step)
	if sum > 255 {
		sum = 255
	}
	d.brightness = uint8(sum)
}

// DecreaseBrightness lowers the brightness scale by step, saturating
// at 0.
func (d *Device) DecreaseBrightness(step uint8) {
	if uint16(step) > uint16(d.brightness) {
		d.brightness = 0
		return
	}
	d.brightness -= step
}

// Brightness returns the device's current brightness scale.
func (d *Device) Brightness() uint8 {
	return d.brightness
}

// GetLightLevel samples the onboard light sensor. It returns 0 if the
// ADC channel was never configured.
func (d *Device) GetLightLevel() uint16 {
	d.cfg.LightSensor.Configure(machine.ADCConfig{})
	return d.cfg.LightSensor.Get()
}
