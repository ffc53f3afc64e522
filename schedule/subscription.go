package schedule

import "sync"

// Status reports a schedule handle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Handle controls one scheduled entry.
type Handle interface {
	Cancel()
	Status() Status
	Err() error
	Done() <-chan struct{}
	ID() int64
}

type subscription struct {
	scheduler *Scheduler
	id        int64
	entryID   int
	done      chan struct{}

	mu     sync.RWMutex
	status Status
	err    error
	once   sync.Once
}

func (s *subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.scheduler != nil {
			s.scheduler.removeHandle(s.id)
		}
		s.setTerminal(StatusCanceled, nil)
	})
}

func (s *subscription) Status() Status {
	if s == nil {
		return StatusStopped
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *subscription) Err() error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *subscription) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

func (s *subscription) ID() int64 {
	if s == nil {
		return 0
	}
	return s.id
}

func (s *subscription) setStatus(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.err = err
}

func (s *subscription) setTerminal(status Status, err error) {
	s.setStatus(status, err)
	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
}

func isTerminal(status Status) bool {
	switch status {
	case StatusCanceled, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}
