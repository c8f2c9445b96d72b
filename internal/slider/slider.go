package slider

import (
	"fmt"
	"time"
)

type Phase int

const (
	AtRest Phase = iota
	Dragging
	Animating
)

func (p Phase) String() string {
	switch p {
	case AtRest:
		return "at_rest"
	case Dragging:
		return "dragging"
	case Animating:
		return "animating"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// segment moves the boundary from one position to another over duration.
// from == to is a pause.
type segment struct {
	from, to float64
	duration time.Duration
}

// Attract timings used whenever a new "after" image arrives.
const (
	AttractDelay  = 2500 * time.Millisecond
	AttractSweep  = 1500 * time.Millisecond
	AttractPause  = 300 * time.Millisecond
	AttractReturn = 750 * time.Millisecond
)

// Slider is the reveal boundary between the before and after images. The
// boundary is the width of the after image shown from the left edge. Its
// position is always derivable from the current phase.
type Slider struct {
	width float64
	phase Phase

	// AtRest: rest. Dragging: anchor plus delta.
	rest   float64
	anchor float64
	delta  float64

	// Animating.
	segments []segment
	elapsed  time.Duration
}

// New returns a slider resting in the middle.
func New(width float64) *Slider {
	if width < 0 {
		width = 0
	}
	return &Slider{width: width, rest: width / 2}
}

func (s *Slider) Width() float64 { return s.width }
func (s *Slider) Phase() Phase   { return s.phase }

// Position is the boundary currently displayed.
func (s *Slider) Position() float64 {
	switch s.phase {
	case Dragging:
		return s.clamp(s.anchor + s.delta)
	case Animating:
		return s.animatedPosition()
	default:
		return s.rest
	}
}

// Fraction is Position scaled to [0, 1].
func (s *Slider) Fraction() float64 {
	if s.width == 0 {
		return 0
	}
	return s.Position() / s.width
}

// Attract starts the introductory sweep: hold at the left edge, sweep to the
// right edge, pause, then settle in the middle.
func (s *Slider) Attract() {
	s.phase = Animating
	s.elapsed = 0
	s.segments = []segment{
		{from: 0, to: 0, duration: AttractDelay},
		{from: 0, to: s.width, duration: AttractSweep},
		{from: s.width, to: s.width, duration: AttractPause},
		{from: s.width, to: s.width / 2, duration: AttractReturn},
	}
}

// Advance moves an animation forward by dt. Outside Animating it does
// nothing.
func (s *Slider) Advance(dt time.Duration) {
	if s.phase != Animating || dt <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed >= s.totalDuration() {
		s.phase = AtRest
		s.rest = s.segments[len(s.segments)-1].to
		s.segments = nil
		s.elapsed = 0
	}
}

// Remaining is how long the running animation still needs.
func (s *Slider) Remaining() time.Duration {
	if s.phase != Animating {
		return 0
	}
	return s.totalDuration() - s.elapsed
}

// UntilNextKeyframe is the time left in the current animation segment, 0 when
// not animating.
func (s *Slider) UntilNextKeyframe() time.Duration {
	if s.phase != Animating {
		return 0
	}
	t := s.elapsed
	for _, seg := range s.segments {
		if t < seg.duration {
			return seg.duration - t
		}
		t -= seg.duration
	}
	return 0
}

// Grab starts a gesture. A running animation stops where it is.
func (s *Slider) Grab() {
	if s.phase == Dragging {
		return
	}
	s.anchor = s.Position()
	s.delta = 0
	s.segments = nil
	s.elapsed = 0
	s.phase = Dragging
}

// Drag shows the boundary at anchor+dx, clamped to the slider.
func (s *Slider) Drag(dx float64) {
	if s.phase != Dragging {
		s.Grab()
	}
	s.delta = dx
}

// Release ends the gesture and rests at anchor+dx, clamped. The next gesture
// is relative to this value.
func (s *Slider) Release(dx float64) {
	if s.phase != Dragging {
		s.Grab()
	}
	s.rest = s.clamp(s.anchor + dx)
	s.anchor, s.delta = 0, 0
	s.phase = AtRest
}

// Nudge is a whole gesture in one step.
func (s *Slider) Nudge(dx float64) {
	s.Grab()
	s.Release(dx)
}

func (s *Slider) clamp(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > s.width:
		return s.width
	default:
		return x
	}
}

func (s *Slider) totalDuration() time.Duration {
	var total time.Duration
	for _, seg := range s.segments {
		total += seg.duration
	}
	return total
}

func (s *Slider) animatedPosition() float64 {
	t := s.elapsed
	for _, seg := range s.segments {
		if t < seg.duration {
			p := float64(t) / float64(seg.duration)
			return seg.from + (seg.to-seg.from)*easeInOut(p)
		}
		t -= seg.duration
	}
	if n := len(s.segments); n > 0 {
		return s.segments[n-1].to
	}
	return s.rest
}

func easeInOut(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	return 1 - 2*(1-p)*(1-p)
}
