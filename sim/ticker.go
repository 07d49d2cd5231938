package sim

import (
	"sync"
)

// TickEvent is a generic event that almost all the component can use to
// update their status.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent
func MakeTickEvent(handler Handler, time VTime) TickEvent {
	evt := TickEvent{}
	evt.ID = GetIDGenerator().Generate()
	evt.handler = handler
	evt.time = time
	evt.secondary = false

	return evt
}

// A Ticker is an object that updates states with ticks. Tick reports whether
// progress was made; a ticker that made progress is ticked again one period
// later.
type Ticker interface {
	Tick() (bool, error)
}

// TickScheduler can help schedule tick events. Ticks fall on
// Origin + k*Period.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Period    Period
	Origin    VTime
	Engine    Engine
	secondary bool

	nextTickTime VTime
	scheduled    bool
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine Engine,
	period Period,
	origin VTime,
) *TickScheduler {
	period.mustBeValid()

	ticker := new(TickScheduler)

	ticker.handler = handler
	ticker.Engine = engine
	ticker.Period = period
	ticker.Origin = origin

	return ticker
}

// TickNow schedule a Tick event at the current tick, or at the origin if the
// engine has not reached it yet.
func (t *TickScheduler) TickNow() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.CurrentTime()
	time := t.Origin
	if now > t.Origin {
		time = t.Origin + t.Period.ThisTick(now-t.Origin)
	}

	t.schedule(time)
}

// TickLater will schedule a tick event at the tick after the now time.
func (t *TickScheduler) TickLater() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.CurrentTime()
	time := t.Origin
	if now >= t.Origin {
		time = t.Origin + t.Period.NextTick(now-t.Origin)
	}

	t.schedule(time)
}

func (t *TickScheduler) schedule(time VTime) {
	if t.scheduled && t.nextTickTime >= time {
		return
	}

	t.nextTickTime = time
	t.scheduled = true

	tick := MakeTickEvent(t.handler, time)
	if t.secondary {
		tick.secondary = true
	}

	t.Engine.Schedule(tick)
}

// CurrentTime returns the time of the engine.
func (t *TickScheduler) CurrentTime() VTime {
	return t.Engine.CurrentTime()
}

// TickingComponent is a type of component that update states from tick to
// tick. A programmer would only need to program a tick function for a ticking
// component.
type TickingComponent struct {
	*HookableBase
	*TickScheduler

	name   string
	ticker Ticker
}

// NewTickingComponent creates a new ticking component
func NewTickingComponent(
	name string,
	engine Engine,
	period Period,
	origin VTime,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.HookableBase = NewHookableBase()
	tc.TickScheduler = NewTickScheduler(tc, engine, period, origin)
	tc.name = name
	tc.ticker = ticker

	return tc
}

// Name returns the name of the component.
func (c *TickingComponent) Name() string {
	return c.name
}

// Handle triggers the tick function of the TickingComponent
func (c *TickingComponent) Handle(_ Event) error {
	madeProgress, err := c.ticker.Tick()
	if err != nil {
		return err
	}

	if madeProgress {
		c.TickLater()
	}

	return nil
}
