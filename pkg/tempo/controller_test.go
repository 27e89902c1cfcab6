package tempo

import (
	"math"
	"testing"
	"time"
)

func newManual(t *testing.T, opts ...Option) *Controller {
	t.Helper()
	c := New(append([]Option{WithManualTicks()}, opts...)...)
	t.Cleanup(c.Close)
	return c
}

func TestNewDefaults(t *testing.T) {
	c := newManual(t)

	s := c.State()
	if s.Tempo != DefaultTempo || s.Target != DefaultTempo {
		t.Errorf("State() tempo = %v/%v, want %v", s.Tempo, s.Target, DefaultTempo)
	}
	if s.Swing != 0 {
		t.Errorf("State() swing = %v, want 0", s.Swing)
	}
	if s.Transitioning {
		t.Error("new controller should not be transitioning")
	}
}

func TestNewOptionsClamp(t *testing.T) {
	c := newManual(t, WithInitialTempo(500), WithInitialSwing(-1))

	if c.Tempo() != MaxTempo {
		t.Errorf("Tempo() = %v, want %v", c.Tempo(), MaxTempo)
	}
	if c.Swing() != MinSwing {
		t.Errorf("Swing() = %v, want %v", c.Swing(), MinSwing)
	}
}

func TestSetTempoImmediateClamps(t *testing.T) {
	tests := []struct {
		name string
		bpm  float64
		want float64
	}{
		{"in range", 140, 140},
		{"minimum", 60, 60},
		{"maximum", 200, 200},
		{"below minimum", 10, 60},
		{"negative", -120, 60},
		{"above maximum", 250, 200},
		{"fractional", 127.5, 127.5},
		{"NaN", math.NaN(), 60},
		{"infinity", math.Inf(1), 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newManual(t)
			c.SetTempo(tt.bpm, false)

			if got := c.Tempo(); got != tt.want {
				t.Errorf("Tempo() = %v, want %v", got, tt.want)
			}
			if got := c.TargetTempo(); got != tt.want {
				t.Errorf("TargetTempo() = %v, want %v", got, tt.want)
			}
			if c.IsTransitioning() {
				t.Error("non-smooth SetTempo should never transition")
			}
		})
	}
}

func TestSetTempoSmallSmoothChangeIsImmediate(t *testing.T) {
	c := newManual(t)
	c.SetTempo(122, true)

	if c.Tempo() != 122 {
		t.Errorf("Tempo() = %v, want 122", c.Tempo())
	}
	if c.IsTransitioning() {
		t.Error("change within threshold should not transition")
	}

	// exactly at the threshold is still immediate
	c.SetTempo(127, true)
	if c.Tempo() != 127 || c.IsTransitioning() {
		t.Errorf("Tempo() = %v transitioning=%v, want 127 and idle", c.Tempo(), c.IsTransitioning())
	}
}

func TestSetTempoSmoothGlidesWithoutOvershoot(t *testing.T) {
	c := newManual(t)
	c.SetTempo(130, true)

	if !c.IsTransitioning() {
		t.Fatal("IsTransitioning() = false, want true right after a large smooth change")
	}
	if c.Tempo() != 120 {
		t.Errorf("Tempo() = %v, want 120 before any tick", c.Tempo())
	}
	if c.TargetTempo() != 130 {
		t.Errorf("TargetTempo() = %v, want 130", c.TargetTempo())
	}

	want := []float64{122, 124, 126, 128, 130}
	for i, w := range want {
		running := c.Advance()
		if got := c.Tempo(); got != w {
			t.Fatalf("tick %d: Tempo() = %v, want %v", i, got, w)
		}
		if got := c.Tempo(); got > 130 {
			t.Fatalf("tick %d: overshoot to %v", i, got)
		}
		if wantRunning := i < len(want)-1; running != wantRunning {
			t.Errorf("tick %d: Advance() = %v, want %v", i, running, wantRunning)
		}
	}
	if c.IsTransitioning() {
		t.Error("transition should be finished")
	}
	if c.Advance() {
		t.Error("Advance() on idle controller should report false")
	}
}

func TestSetTempoSmoothDownwardSnapsOnLastStep(t *testing.T) {
	c := newManual(t)
	c.SetTempo(113, true) // 7 BPM down

	c.Advance() // 118
	c.Advance() // 116
	c.Advance() // 114
	if c.Tempo() != 114 {
		t.Fatalf("Tempo() = %v, want 114", c.Tempo())
	}
	if c.Advance() {
		t.Error("remaining distance 1 should snap and finish")
	}
	if c.Tempo() != 113 {
		t.Errorf("Tempo() = %v, want 113", c.Tempo())
	}
}

func TestSetTempoRetargetAndCancel(t *testing.T) {
	c := newManual(t)
	c.SetTempo(150, true)
	c.Advance() // 122

	c.SetTempo(100, true)
	if !c.IsTransitioning() || c.TargetTempo() != 100 {
		t.Fatalf("retarget: transitioning=%v target=%v, want true/100", c.IsTransitioning(), c.TargetTempo())
	}
	c.Advance()
	if c.Tempo() != 120 {
		t.Errorf("after retarget tick Tempo() = %v, want 120", c.Tempo())
	}

	c.SetTempo(90, false)
	if c.IsTransitioning() {
		t.Error("non-smooth SetTempo should cancel the transition")
	}
	if c.Tempo() != 90 || c.TargetTempo() != 90 {
		t.Errorf("Tempo()/TargetTempo() = %v/%v, want 90/90", c.Tempo(), c.TargetTempo())
	}

	c.SetTempo(150, true)
	c.Advance() // 92
	c.SetTempo(95, true)
	if c.IsTransitioning() || c.Tempo() != 95 {
		t.Errorf("small smooth change during glide: tempo=%v transitioning=%v, want 95 idle", c.Tempo(), c.IsTransitioning())
	}
}

func TestAdjustTempo(t *testing.T) {
	c := newManual(t)

	c.AdjustTempo(3, true)
	if c.Tempo() != 123 {
		t.Errorf("Tempo() = %v, want 123", c.Tempo())
	}
	c.AdjustTempo(-100, false)
	if c.Tempo() != MinTempo {
		t.Errorf("Tempo() = %v, want %v", c.Tempo(), MinTempo)
	}
	c.AdjustTempo(20, true)
	if !c.IsTransitioning() || c.TargetTempo() != 80 {
		t.Errorf("transitioning=%v target=%v, want true/80", c.IsTransitioning(), c.TargetTempo())
	}
}

func TestSwingClamps(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{0.3, 0.3},
		{-0.2, 0.0},
		{1.0, 0.75},
		{0.75, 0.75},
		{math.NaN(), 0.0},
	}

	for _, tt := range tests {
		c := newManual(t)
		c.SetSwing(tt.amount)
		if got := c.Swing(); got != tt.want {
			t.Errorf("SetSwing(%v): Swing() = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestAdjustSwing(t *testing.T) {
	c := newManual(t, WithInitialSwing(0.5))

	c.AdjustSwing(0.1)
	if math.Abs(c.Swing()-0.6) > 1e-9 {
		t.Errorf("Swing() = %v, want 0.6", c.Swing())
	}
	c.AdjustSwing(1)
	if c.Swing() != MaxSwing {
		t.Errorf("Swing() = %v, want %v", c.Swing(), MaxSwing)
	}
	c.AdjustSwing(-5)
	if c.Swing() != MinSwing {
		t.Errorf("Swing() = %v, want %v", c.Swing(), MinSwing)
	}
}

func TestSwingPercentageRoundTrip(t *testing.T) {
	c := newManual(t)
	for pct := MinSwingPercent; pct <= MaxSwingPercent; pct++ {
		c.SetSwingPercentage(pct)
		if got := c.SwingPercentage(); got != pct {
			t.Errorf("SetSwingPercentage(%d): SwingPercentage() = %d", pct, got)
		}
	}

	c.SetSwingPercentage(50)
	if c.Swing() != 0 {
		t.Errorf("50%% should be no swing, got %v", c.Swing())
	}
	c.SetSwingPercentage(75)
	if c.Swing() != MaxSwing {
		t.Errorf("75%% should be max swing, got %v", c.Swing())
	}
	c.SetSwingPercentage(99)
	if c.SwingPercentage() != 75 {
		t.Errorf("SetSwingPercentage(99) should clamp to 75, got %d", c.SwingPercentage())
	}
}

func TestApplyPresets(t *testing.T) {
	c := newManual(t)

	c.ApplyGroovePreset("shuffle")
	if c.Swing() != 0.5 {
		t.Errorf("shuffle: Swing() = %v, want 0.5", c.Swing())
	}
	c.ApplyGroovePreset("nope")
	if c.Swing() != 0 {
		t.Errorf("unknown groove: Swing() = %v, want 0", c.Swing())
	}

	c.ApplyMPCSwingPreset("66%")
	if c.SwingPercentage() != 66 {
		t.Errorf("66%%: SwingPercentage() = %d, want 66", c.SwingPercentage())
	}
	c.ApplyMPCSwingPreset("unknown")
	if c.Swing() != 0 {
		t.Errorf("unknown mpc: Swing() = %v, want 0", c.Swing())
	}
}

func TestTapTempoReturnsCandidateWithoutApplying(t *testing.T) {
	c := newManual(t)

	var bpm float64
	var ok bool
	for _, ms := range []int64{0, 400, 800, 1200} {
		bpm, ok = c.TapTempo(time.UnixMilli(ms))
	}
	if !ok || bpm != 150 {
		t.Fatalf("TapTempo() = %v, %v, want 150, true", bpm, ok)
	}
	if c.Tempo() != DefaultTempo {
		t.Errorf("TapTempo should not change tempo, got %v", c.Tempo())
	}

	c.ResetTapTempo()
	if _, ok := c.TapTempo(time.UnixMilli(1600)); ok {
		t.Error("first tap after reset should not produce an estimate")
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	c := newManual(t)
	events, cancel := c.Subscribe(16)
	defer cancel()

	c.SetTempo(130, true)
	c.SetSwing(0.25)

	evt := <-events
	if evt.Kind != TransitionStarted || !evt.State.Transitioning || evt.State.Target != 130 {
		t.Errorf("first event = %+v, want TransitionStarted toward 130", evt)
	}
	evt = <-events
	if evt.Kind != SwingChanged || evt.State.Swing != 0.25 {
		t.Errorf("second event = %+v, want SwingChanged 0.25", evt)
	}

	for c.Advance() {
	}
	var last Event
	for len(events) > 0 {
		last = <-events
	}
	if last.Kind != TransitionFinished || last.State.Tempo != 130 {
		t.Errorf("last event = %+v, want TransitionFinished at 130", last)
	}
}

func TestSubscribeKeepsLatestWhenFull(t *testing.T) {
	c := newManual(t)
	events, cancel := c.Subscribe(1)

	c.SetSwing(0.1)
	c.SetSwing(0.2) // replaces the queued 0.1, must not block

	if evt := <-events; evt.State.Swing != 0.2 {
		t.Errorf("buffered event swing = %v, want 0.2", evt.State.Swing)
	}
	if c.Swing() != 0.2 {
		t.Errorf("Swing() = %v, want 0.2", c.Swing())
	}

	cancel()
	cancel()
	if _, open := <-events; open {
		t.Error("channel should be closed after cancel")
	}
}

func TestSlowSubscriberSeesGlideFinish(t *testing.T) {
	c := newManual(t)
	events, cancel := c.Subscribe(2)
	defer cancel()

	c.SetTempo(130, true)
	for c.Advance() {
	}

	var last Event
	for len(events) > 0 {
		last = <-events
	}
	if last.State != c.State() {
		t.Errorf("last event state = %+v, want %+v", last.State, c.State())
	}
	if last.Kind != TransitionFinished {
		t.Errorf("last event kind = %v, want %v", last.Kind, TransitionFinished)
	}
}

func TestCloseClosesSubscriptions(t *testing.T) {
	c := New(WithManualTicks())
	events, cancel := c.Subscribe(4)
	c.Close()
	c.Close()
	cancel()

	if _, open := <-events; open {
		t.Error("channel should be closed after Close")
	}

	late, _ := c.Subscribe(1)
	if _, open := <-late; open {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestTickerDrivesTransition(t *testing.T) {
	c := New(WithTickInterval(time.Millisecond))
	defer c.Close()

	events, cancel := c.Subscribe(64)
	defer cancel()

	c.SetTempo(140, true)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			if evt.State.Tempo > 140 {
				t.Fatalf("overshoot: %v", evt.State.Tempo)
			}
			if evt.Kind == TransitionFinished {
				if c.Tempo() != 140 || c.IsTransitioning() {
					t.Errorf("after finish: tempo=%v transitioning=%v", c.Tempo(), c.IsTransitioning())
				}
				return
			}
		case <-timeout:
			t.Fatalf("transition did not finish, tempo=%v", c.Tempo())
		}
	}
}

func TestCloseLandsGlideOnTarget(t *testing.T) {
	c := New(WithTickInterval(time.Hour))
	c.SetTempo(180, true)
	if !c.IsTransitioning() {
		t.Fatal("expected transition")
	}

	c.Close()
	if c.IsTransitioning() || c.Tempo() != 180 {
		t.Errorf("after Close: tempo=%v transitioning=%v, want 180 idle", c.Tempo(), c.IsTransitioning())
	}

	c.SetTempo(100, true)
	if c.IsTransitioning() || c.Tempo() != 100 {
		t.Errorf("after Close smooth changes apply at once: tempo=%v transitioning=%v", c.Tempo(), c.IsTransitioning())
	}
}

func waitEvent(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			if match(evt) {
				return evt
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}
}

func TestTickerStopsOnCancel(t *testing.T) {
	c := New(WithTickInterval(time.Millisecond))
	defer c.Close()

	events, cancel := c.Subscribe(512)
	defer cancel()

	c.SetTempo(MaxTempo, true)
	waitEvent(t, events, func(e Event) bool { return e.Kind == TempoChanged && e.State.Tempo > DefaultTempo })

	c.SetTempo(90, false)
	c.mu.Lock()
	running := c.stopTick != nil
	c.mu.Unlock()
	if running {
		t.Fatal("ticker still registered after a non-smooth SetTempo")
	}

	time.Sleep(20 * time.Millisecond)

	cancelled := false
	for len(events) > 0 {
		evt := <-events
		if evt.State.Tempo == 90 {
			cancelled = true
			continue
		}
		if cancelled {
			t.Fatalf("event after cancel: %+v", evt)
		}
	}
	if !cancelled {
		t.Error("no event for the cancelling SetTempo")
	}
	if c.Tempo() != 90 || c.IsTransitioning() {
		t.Errorf("tempo=%v transitioning=%v, want 90 idle", c.Tempo(), c.IsTransitioning())
	}
}

func TestTickerReusedOnRetarget(t *testing.T) {
	c := New(WithInitialTempo(90), WithTickInterval(time.Millisecond))
	defer c.Close()

	events, cancel := c.Subscribe(512)
	defer cancel()

	c.SetTempo(MaxTempo, true)
	c.mu.Lock()
	first := c.stopTick
	c.mu.Unlock()

	prev := waitEvent(t, events, func(e Event) bool { return e.Kind == TempoChanged }).State.Tempo

	c.SetTempo(70, true)
	c.mu.Lock()
	same := c.stopTick == first
	c.mu.Unlock()
	if !same {
		t.Fatal("retarget should keep the running ticker")
	}

	for {
		evt := waitEvent(t, events, func(Event) bool { return true })
		if d := math.Abs(evt.State.Tempo - prev); d > TransitionRate {
			t.Fatalf("tempo moved %v in one event (%v -> %v)", d, prev, evt.State.Tempo)
		}
		if evt.State.Tempo < 70 {
			t.Fatalf("overshoot: %v", evt.State.Tempo)
		}
		prev = evt.State.Tempo
		if evt.Kind == TransitionFinished {
			break
		}
	}
	if c.Tempo() != 70 || c.IsTransitioning() {
		t.Errorf("tempo=%v transitioning=%v, want 70 idle", c.Tempo(), c.IsTransitioning())
	}
}

func TestNudgeTempoMovesTarget(t *testing.T) {
	c := newManual(t)

	if got := c.NudgeTempo(10, true); got != 130 {
		t.Errorf("NudgeTempo() = %v, want 130", got)
	}
	c.NudgeTempo(10, true)
	if c.TargetTempo() != 140 || c.Tempo() != DefaultTempo {
		t.Errorf("target=%v tempo=%v, want 140 gliding from %v", c.TargetTempo(), c.Tempo(), DefaultTempo)
	}

	c.SetTempo(MaxTempo, false)
	if got := c.NudgeTempo(1, true); got != MaxTempo+1 {
		t.Errorf("NudgeTempo() = %v, want the unclamped request", got)
	}
	if c.Tempo() != MaxTempo {
		t.Errorf("Tempo() = %v, want %v", c.Tempo(), MaxTempo)
	}
}
