package conductor

import (
	"runtime"
	"time"
)

// IdleStrategy backs off when do_work finds nothing to do: it spins, then
// yields, then parks with an increasing bound, the same progressive
// back-off the corpus's hub/worker loops use when their channels are
// empty (see pkg/websocket.Hub.Run's select loop for the pattern this
// generalizes away from a plain blocking select, since do_work must
// never block on any single input).
type IdleStrategy struct {
	MaxSpins  int
	MaxYields int
	MinParkNS int64
	MaxParkNS int64

	spins      int
	yields     int
	parkNS     int64
}

// DefaultIdleStrategy matches the values the driver config defaults to.
func DefaultIdleStrategy() *IdleStrategy {
	return &IdleStrategy{
		MaxSpins:  100,
		MaxYields: 100,
		MinParkNS: int64(1 * time.Microsecond),
		MaxParkNS: int64(1 * time.Millisecond),
	}
}

// Idle is called once per do_work tick with the amount of work done.
// A positive workCount resets the back-off; zero work advances it.
func (s *IdleStrategy) Idle(workCount int) {
	if workCount > 0 {
		s.reset()
		return
	}

	switch {
	case s.spins < s.MaxSpins:
		s.spins++
	case s.yields < s.MaxYields:
		s.yields++
		runtime.Gosched()
	default:
		if s.parkNS == 0 {
			s.parkNS = s.MinParkNS
		}
		time.Sleep(time.Duration(s.parkNS))
		s.parkNS *= 2
		if s.parkNS > s.MaxParkNS {
			s.parkNS = s.MaxParkNS
		}
	}
}

func (s *IdleStrategy) reset() {
	s.spins = 0
	s.yields = 0
	s.parkNS = 0
}
