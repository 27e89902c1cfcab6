// Package miditap turns MIDI note-on messages into tap-tempo input
package miditap

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// AnyChannel accepts taps from every MIDI channel
const AnyChannel = -1

// Tapper is the part of tempo.Controller a tap source drives
type Tapper interface {
	TapTempo(at time.Time) (float64, bool)
	SetTempo(bpm float64, smooth bool)
}

// Options configures a Source
type Options struct {
	Channel int  // 0-15, or AnyChannel
	Apply   bool // apply each estimate with a smooth SetTempo
	Logger  *slog.Logger

	// OnEstimate is called with every estimate, after it was applied
	OnEstimate func(bpm float64)
}

// Source feeds MIDI note-ons into a Tapper
type Source struct {
	tapper Tapper
	opts   Options

	mu   sync.Mutex
	stop func()
}

// New creates a Source for the given Tapper
func New(t Tapper, opts Options) *Source {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Source{tapper: t, opts: opts}
}

// HandleMessage registers a tap for a note-on (velocity > 0) on the configured
// channel and returns the resulting estimate. Everything else is ignored.
func (s *Source) HandleMessage(msg midi.Message, at time.Time) (float64, bool) {
	var ch, key, vel uint8
	if !msg.GetNoteStart(&ch, &key, &vel) {
		return 0, false
	}
	if s.opts.Channel != AnyChannel && int(ch) != s.opts.Channel {
		return 0, false
	}

	bpm, ok := s.tapper.TapTempo(at)
	if !ok {
		s.opts.Logger.Debug("midi tap", "channel", ch, "key", key)
		return 0, false
	}
	if s.opts.Apply {
		s.tapper.SetTempo(bpm, true)
	}
	s.opts.Logger.Info("midi tap estimate", "bpm", bpm, "channel", ch, "key", key, "applied", s.opts.Apply)
	if s.opts.OnEstimate != nil {
		s.opts.OnEstimate(bpm)
	}
	return bpm, true
}

// Listen opens the named MIDI input port and routes its messages to
// HandleMessage until Close is called.
func (s *Source) Listen(portName string) error {
	in, err := midi.FindInPort(portName)
	if err != nil {
		return fmt.Errorf("find MIDI input %q: %w", portName, err)
	}

	start := time.Now()
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		s.HandleMessage(msg, start.Add(time.Duration(timestampms)*time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("listen on MIDI input %q: %w", portName, err)
	}

	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.stop = stop
	s.mu.Unlock()

	s.opts.Logger.Info("listening for MIDI taps", "port", in.String(), "channel", s.opts.Channel)
	return nil
}

// Close stops listening
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// InPorts lists the available MIDI input port names
func InPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}
