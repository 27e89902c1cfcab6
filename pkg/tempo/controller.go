package tempo

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Controller is the single authority for tempo and swing.
//
// All mutations are serialized by one mutex, including the transition ticker.
// Reads go through an atomically published State and never block.
type Controller struct {
	mu            sync.Mutex
	tempo         float64
	target        float64
	transitioning bool
	swing         float64
	taps          *TapEstimator

	state atomic.Pointer[State]

	logger       *slog.Logger
	tickInterval time.Duration
	manualTicks  bool

	// non-nil while a ticker goroutine runs
	stopTick chan struct{}
	tickWG   sync.WaitGroup

	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used for transition and tap diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithInitialTempo sets the starting tempo (clamped)
func WithInitialTempo(bpm float64) Option {
	return func(c *Controller) {
		c.tempo = ClampTempo(bpm)
		c.target = c.tempo
	}
}

// WithInitialSwing sets the starting swing (clamped)
func WithInitialSwing(amount float64) Option {
	return func(c *Controller) {
		c.swing = ClampSwing(amount)
	}
}

// WithTickInterval overrides TickInterval for the transition ticker
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithManualTicks disables the autonomous ticker; transitions only move when
// Advance is called.
func WithManualTicks() Option {
	return func(c *Controller) {
		c.manualTicks = true
	}
}

// New creates a Controller at DefaultTempo with no swing
func New(opts ...Option) *Controller {
	c := &Controller{
		tempo:        DefaultTempo,
		target:       DefaultTempo,
		swing:        MinSwing,
		taps:         NewTapEstimator(),
		logger:       slog.Default(),
		tickInterval: TickInterval,
		subs:         make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.storeLocked()
	return c
}

// State returns a consistent snapshot of all observable values
func (c *Controller) State() State {
	return *c.state.Load()
}

// Tempo returns the current tempo in BPM
func (c *Controller) Tempo() float64 {
	return c.state.Load().Tempo
}

// TargetTempo returns the tempo a running transition is heading for
func (c *Controller) TargetTempo() float64 {
	return c.state.Load().Target
}

// Swing returns the current swing fraction
func (c *Controller) Swing() float64 {
	return c.state.Load().Swing
}

// IsTransitioning reports whether a glide is in progress
func (c *Controller) IsTransitioning() bool {
	return c.state.Load().Transitioning
}

// SwingPercentage returns the swing as an MPC-style percentage
func (c *Controller) SwingPercentage() int {
	return c.state.Load().SwingPercentage()
}

// SetTempo clamps bpm into range. When smooth is set and the jump exceeds
// TransitionThreshold the tempo glides toward it, otherwise it applies at once
// and cancels any glide.
func (c *Controller) SetTempo(bpm float64, smooth bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTempoLocked(bpm, smooth)
}

// AdjustTempo is SetTempo relative to the current tempo
func (c *Controller) AdjustTempo(delta float64, smooth bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTempoLocked(c.tempo+delta, smooth)
}

// NudgeTempo is SetTempo relative to the target tempo, so repeated nudges
// during a glide accumulate. It returns the requested, unclamped tempo.
func (c *Controller) NudgeTempo(delta float64, smooth bool) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	requested := c.target + delta
	c.setTempoLocked(requested, smooth)
	return requested
}

func (c *Controller) setTempoLocked(bpm float64, smooth bool) {
	clamped := ClampTempo(bpm)
	canGlide := c.manualTicks || !c.closed

	if smooth && canGlide && math.Abs(clamped-c.tempo) > TransitionThreshold {
		c.target = clamped
		if c.transitioning {
			c.logger.Debug("transition retargeted", "from", c.tempo, "to", clamped)
			c.publishLocked(TempoChanged)
			return
		}
		c.transitioning = true
		c.logger.Debug("transition started", "from", c.tempo, "to", clamped)
		c.publishLocked(TransitionStarted)
		c.startTickerLocked()
		return
	}

	wasTransitioning := c.transitioning
	c.stopTickerLocked()
	c.tempo = clamped
	c.target = clamped
	c.transitioning = false
	c.publishLocked(TempoChanged)
	if wasTransitioning {
		c.logger.Debug("transition cancelled", "tempo", clamped)
		c.publishLocked(TransitionFinished)
	}
}

// Advance performs one transition step and reports whether the glide is
// still in progress. It is a no-op when idle.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked()
}

func (c *Controller) advanceLocked() bool {
	if !c.transitioning {
		return false
	}
	diff := c.target - c.tempo
	if math.Abs(diff) <= TransitionRate {
		c.tempo = c.target
		c.transitioning = false
		c.stopTickerLocked()
		c.logger.Debug("transition finished", "tempo", c.tempo)
		c.publishLocked(TempoChanged)
		c.publishLocked(TransitionFinished)
		return false
	}
	c.tempo += math.Copysign(TransitionRate, diff)
	c.publishLocked(TempoChanged)
	return true
}

func (c *Controller) startTickerLocked() {
	if c.manualTicks || c.closed || c.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	c.stopTick = stop
	c.tickWG.Add(1)
	go c.runTicker(stop)
}

func (c *Controller) stopTickerLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

// runTicker drives advanceLocked until the glide ends or stop is closed
func (c *Controller) runTicker(stop chan struct{}) {
	defer c.tickWG.Done()

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stopTick != stop {
				c.mu.Unlock()
				return
			}
			running := c.advanceLocked()
			c.mu.Unlock()
			if !running {
				return
			}
		}
	}
}

// SetSwing clamps amount into range and applies it immediately
func (c *Controller) SetSwing(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setSwingLocked(amount)
}

// AdjustSwing is SetSwing relative to the current swing
func (c *Controller) AdjustSwing(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setSwingLocked(c.swing + delta)
}

// SetSwingPercentage sets swing from an MPC-style percentage (50-75)
func (c *Controller) SetSwingPercentage(pct int) {
	c.SetSwing(PercentToSwing(pct))
}

// ApplyGroovePreset sets swing from the groove table; unknown names mean no swing
func (c *Controller) ApplyGroovePreset(name string) {
	amount, ok := GroovePreset(name)
	if !ok {
		c.logger.Debug("unknown groove preset", "name", name)
	}
	c.SetSwing(amount)
}

// ApplyMPCSwingPreset sets swing from the MPC table; unknown names mean no swing
func (c *Controller) ApplyMPCSwingPreset(name string) {
	amount, ok := MPCSwingPreset(name)
	if !ok {
		c.logger.Debug("unknown mpc swing preset", "name", name)
	}
	c.SetSwing(amount)
}

func (c *Controller) setSwingLocked(amount float64) {
	c.swing = ClampSwing(amount)
	c.publishLocked(SwingChanged)
}

// TapTempo records a tap and returns a BPM candidate once enough taps are in
// the window. The candidate is not applied; callers decide via SetTempo.
func (c *Controller) TapTempo(at time.Time) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bpm, ok := c.taps.Tap(at)
	if ok {
		c.logger.Debug("tap estimate", "bpm", bpm, "taps", c.taps.Count())
	}
	return bpm, ok
}

// ResetTapTempo discards all recorded taps
func (c *Controller) ResetTapTempo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taps.Reset()
}

// Subscribe registers for change events. Sends never block: when the buffer
// is full the oldest queued event is dropped, so the last event received
// always carries the latest state. The returned func unsubscribes and closes
// the channel.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops the transition ticker and closes all subscriptions. A glide in
// progress lands on its target. Values stay readable and writable afterwards,
// but tempo changes apply immediately and nothing is published.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.transitioning && !c.manualTicks {
		c.tempo = c.target
		c.transitioning = false
		c.publishLocked(TransitionFinished)
	}
	c.closed = true
	c.stopTickerLocked()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.tickWG.Wait()
}

func (c *Controller) storeLocked() State {
	s := State{
		Tempo:         c.tempo,
		Target:        c.target,
		Transitioning: c.transitioning,
		Swing:         c.swing,
	}
	c.state.Store(&s)
	return s
}

func (c *Controller) publishLocked(kind EventKind) {
	s := c.storeLocked()
	if len(c.subs) == 0 {
		return
	}
	evt := Event{Kind: kind, State: s, At: time.Now()}
	for _, ch := range c.subs {
		select {
		case ch <- evt:
			continue
		default:
		}
		// full: make room by dropping the oldest event so the newest state lands
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- evt:
		default:
		}
	}
}
