package display

// TouchRegion identifies where the robot was touched.
type TouchRegion int

const (
	TouchNone TouchRegion = iota
	// TouchHead is the top sensor; a pat on the head.
	TouchHead
	// TouchBack is the rear sensor; a tap on the back shell.
	TouchBack
)

func (t TouchRegion) String() string {
	switch t {
	case TouchHead:
		return "head"
	case TouchBack:
		return "back"
	default:
		return "none"
	}
}

// TouchSource reports touch events. Poll returns TouchNone when nothing
// happened since the last call.
type TouchSource interface {
	Poll() TouchRegion
}

// ChanTouch is a channel-backed touch source: hardware interrupt
// handlers (or the debug console) push events, the engine polls them.
type ChanTouch struct {
	events chan TouchRegion
}

// NewChanTouch creates a touch source with a small event buffer.
func NewChanTouch() *ChanTouch {
	return &ChanTouch{events: make(chan TouchRegion, 8)}
}

// Push queues a touch event, dropping it when the buffer is full.
func (c *ChanTouch) Push(region TouchRegion) {
	select {
	case c.events <- region:
	default:
	}
}

// Poll returns the next queued event, or TouchNone.
func (c *ChanTouch) Poll() TouchRegion {
	select {
	case region := <-c.events:
		return region
	default:
		return TouchNone
	}
}

// SimTouch is a scripted touch source for tests.
type SimTouch struct {
	Events []TouchRegion
}

func (s *SimTouch) Poll() TouchRegion {
	if len(s.Events) == 0 {
		return TouchNone
	}
	e := s.Events[0]
	s.Events = s.Events[1:]
	return e
}
