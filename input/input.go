//go:build tinygo && rp2040

// Package input debounces the Galactic Unicorn's physical buttons, one
// goroutine per pin, and delivers press/release events on a channel.
package input

import (
	"machine"
	"time"
)

// Button identifies one of the panel's physical buttons.
type Button uint8

const (
	ButtonA Button = iota
	ButtonB
	ButtonC
	ButtonD
	ButtonVolumeUp
	ButtonVolumeDown
	ButtonBrightnessUp
	ButtonBrightnessDown
	ButtonSleep
	numButtons
)

// Event reports a single button transition.
type Event struct {
	Button  Button
	Pressed bool
}

// Config maps each logical button to its GPIO pin.
type Config struct {
	Pins [numButtons]machine.Pin
}

// DefaultConfig returns the button pin assignment of a stock Galactic
// Unicorn board.
func DefaultConfig() Config {
	return Config{Pins: [numButtons]machine.Pin{
		ButtonA:              0,
		ButtonB:              1,
		ButtonC:              3,
		ButtonD:              6,
		ButtonVolumeUp:       7,
		ButtonVolumeDown:     8,
		ButtonBrightnessUp:   21,
		ButtonBrightnessDown: 26,
		ButtonSleep:          27,
	}}
}

// debounceInterval is the poll period each button goroutine sleeps
// between samples.
const debounceInterval = 20 * time.Millisecond

// Watcher samples every configured button pin and reports debounced
// transitions on its Events channel. Buttons are wired active-low.
type Watcher struct {
	cfg    Config
	events chan Event
}

// NewWatcher configures every button pin as a pulled-up input and
// starts one debouncing goroutine per button.
func NewWatcher(cfg Config) *Watcher {
	w := &Watcher{cfg: cfg, events: make(chan Event, numButtons)}
	for b := Button(0); b < numButtons; b++ {
		pin := cfg.Pins[b]
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		go w.poll(b, pin)
	}
	return w
}

// Events returns the channel on which debounced button transitions
// are delivered.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) poll(b Button, pin machine.Pin) {
	last := pin.Get()
	for {
		time.Sleep(debounceInterval)
		cur := pin.Get()
		if cur == last {
			continue
		}
		last = cur
		w.events <- Event{Button: b, Pressed: !cur}
	}
}
