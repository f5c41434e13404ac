package physics

import (
	"sync"
	"time"
)

// Scheduler calls a frame function repeatedly while running. Each frame
// re-arms the next one after it returns, so frames never overlap.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	frame    func()
	timer    *time.Timer
	running  bool
	epoch    uint64
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(interval time.Duration, frame func()) *Scheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Scheduler{interval: interval, frame: frame}
}

// Start arms the first frame. Starting a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.epoch++
	s.arm(s.epoch)
}

// Stop cancels the pending frame. A frame already executing finishes but
// does not re-arm.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetInterval changes the frame period from the next frame on.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

func (s *Scheduler) arm(epoch uint64) {
	s.timer = time.AfterFunc(s.interval, func() { s.fire(epoch) })
}

func (s *Scheduler) fire(epoch uint64) {
	s.mu.Lock()
	if !s.running || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.frame()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.epoch == epoch {
		s.arm(epoch)
	}
}
