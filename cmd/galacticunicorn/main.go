//go:build tinygo && rp2040

// Command galacticunicorn is the firmware entry point for the
// Galactic Unicorn board: it brings up the panel, watches the button
// inputs, and drives a small brightness-reactive test pattern.
package main

import (
	"time"

	"galacticunicorn.com/bitstream"
	"galacticunicorn.com/driver/unicorn"
	"galacticunicorn.com/input"
)

func main() {
	dev, err := unicorn.New(unicorn.DefaultConfig())
	if err != nil {
		panic(err)
	}

	buttons := input.NewWatcher(input.DefaultConfig())
	go handleButtons(dev, buttons)

	var frame rainbow
	for {
		dev.SetPixels(&frame)
		frame.tick++
		time.Sleep(30 * time.Millisecond)
	}
}

func handleButtons(dev *unicorn.Device, w *input.Watcher) {
	const step = 8
	for ev := range w.Events() {
		if !ev.Pressed {
			continue
		}
		switch ev.Button {
		case input.ButtonBrightnessUp:
			dev.IncreaseBrightness(step)
		case input.ButtonBrightnessDown:
			dev.DecreaseBrightness(step)
		}
	}
}

// rainbow is a minimal animated [bitstream.PixelSource] used as a
// bring-up smoke test: a horizontally scrolling hue gradient.
type rainbow struct {
	tick int
}

func (r *rainbow) Bounds() (int, int) { return bitstream.Width, bitstream.Height }

func (r *rainbow) At(x, y int) (uint8, uint8, uint8) {
	phase := uint8((x*8 + r.tick) & 0xff)
	return hue(phase)
}

// hue maps a byte-valued phase to a saturated RGB color, cycling
// through red, green, and blue in six equal sectors.
func hue(phase uint8) (uint8, uint8, uint8) {
	sector := phase / 43
	offset := uint8((int(phase%43) * 6))
	switch sector {
	case 0:
		return 255, offset, 0
	case 1:
		return 255 - offset, 255, 0
	case 2:
		return 0, 255, offset
	case 3:
		return 0, 255 - offset, 255
	case 4:
		return offset, 0, 255
	default:
		return 255, 0, 255 - offset
	}
}
