// Package playback owns the replay cursor: position, speed, pause state
// and the catch-up tick that keeps playback frame-accurate.
package playback

import (
	"time"

	"github.com/jspeir/arenaclient/internal/replay"
)

// State is the scheduler's play state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

type EventType string

const (
	// EvtFrame carries one emitted frame, from a tick advance or a seek.
	EvtFrame EventType = "FrameAdvanced"
	// EvtFinished fires exactly once when playback reaches the last frame.
	EvtFinished EventType = "ReplayFinished"
)

// Event is emitted by Seek and Tick. The session loop forwards these to
// subscribers.
type Event struct {
	Type  EventType
	Index int
	Frame replay.Frame
}

// FrameDuration is the fixed per-frame playback interval at speed 1.0.
const FrameDuration = time.Second / 60

const (
	MinSpeed = 0.1
	MaxSpeed = 5.0
)

// Scheduler advances through a loaded frame sequence in wall time scaled
// by speed. Not safe for concurrent use; the session loop is its only
// caller.
type Scheduler struct {
	frames []replay.Frame
	state  State
	cursor int
	speed  float64
	acc    time.Duration
	last   time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{speed: 1.0}
}

// Load installs a decoded frame sequence and resets to Stopped at frame 0.
func (s *Scheduler) Load(frames []replay.Frame) {
	s.frames = frames
	s.state = Stopped
	s.cursor = 0
	s.acc = 0
}

// Play starts or resumes playback. The frame index is untouched, so
// resuming after Pause continues where it left off; after Stop the
// cursor is already back at 0.
func (s *Scheduler) Play(now time.Time) {
	if len(s.frames) == 0 || s.state == Playing {
		return
	}
	s.state = Playing
	s.last = now
}

func (s *Scheduler) Pause() {
	if s.state == Playing {
		s.state = Paused
	}
}

// Stop halts playback and rewinds to frame 0.
func (s *Scheduler) Stop() {
	s.state = Stopped
	s.cursor = 0
	s.acc = 0
}

// Seek jumps to frame n, clamped to the loaded range, regardless of play
// state, and emits that frame immediately. Synchronous: it never waits
// for a tick.
func (s *Scheduler) Seek(n int) []Event {
	if len(s.frames) == 0 {
		return nil
	}
	if n < 0 {
		n = 0
	}
	if n > len(s.frames)-1 {
		n = len(s.frames) - 1
	}
	s.cursor = n
	s.acc = 0
	return []Event{{Type: EvtFrame, Index: n, Frame: s.frames[n]}}
}

// SetSpeed clamps and applies the playback speed. Only subsequent ticks
// are affected; time already accumulated is not rescaled.
func (s *Scheduler) SetSpeed(v float64) float64 {
	if v < MinSpeed {
		v = MinSpeed
	}
	if v > MaxSpeed {
		v = MaxSpeed
	}
	s.speed = v
	return v
}

// Tick accounts the wall time since the previous tick, scaled by speed,
// against the fixed frame duration. It emits one frame event per elapsed
// frame interval — zero, one, or several (catch-up, never silent skips).
// Reaching the last frame stops playback and emits EvtFinished once.
func (s *Scheduler) Tick(now time.Time) []Event {
	if s.state != Playing {
		return nil
	}
	elapsed := now.Sub(s.last)
	s.last = now
	if elapsed < 0 {
		elapsed = 0
	}
	s.acc += time.Duration(float64(elapsed) * s.speed)

	last := len(s.frames) - 1
	var events []Event
	for s.acc >= FrameDuration && s.state == Playing {
		s.acc -= FrameDuration
		if s.cursor >= last {
			// Already on the final frame (seek-to-end then play): finish
			// without re-emitting it.
			s.state = Stopped
			s.cursor = 0
			s.acc = 0
			events = append(events, Event{Type: EvtFinished, Index: last})
			break
		}
		next := s.cursor + 1
		s.cursor = next
		events = append(events, Event{Type: EvtFrame, Index: next, Frame: s.frames[next]})
		if next == last {
			s.state = Stopped
			s.cursor = 0
			s.acc = 0
			events = append(events, Event{Type: EvtFinished, Index: next})
		}
	}
	return events
}

func (s *Scheduler) State() State   { return s.state }
func (s *Scheduler) Cursor() int    { return s.cursor }
func (s *Scheduler) Speed() float64 { return s.speed }
func (s *Scheduler) Len() int       { return len(s.frames) }
