package core

import "context"

// TaskSlot holds at most one in-flight operation. Replacing the occupant
// cancels it; the cancelled operation finds out at its next suspension point
// and its completion is rejected by IsCurrent. A slot is confined to the
// executor that owns the controller, so it does no locking.
type TaskSlot struct {
	seq     uint64
	current uint64
	cancel  context.CancelFunc
}

// Replace cancels the current occupant, if any, and installs a new operation
// derived from parent. The returned token identifies the new occupant.
func (s *TaskSlot) Replace(parent context.Context) (context.Context, uint64) {
	if parent == nil {
		parent = context.Background()
	}
	s.Cancel()
	ctx, cancel := context.WithCancel(parent)
	s.seq++
	s.current = s.seq
	s.cancel = cancel
	return ctx, s.current
}

func (s *TaskSlot) IsCurrent(token uint64) bool {
	return token != 0 && s.current == token
}

func (s *TaskSlot) Active() bool {
	return s.current != 0
}

// Release empties the slot when token is still the occupant and reports
// whether it was.
func (s *TaskSlot) Release(token uint64) bool {
	if !s.IsCurrent(token) {
		return false
	}
	cancel := s.cancel
	s.current = 0
	s.cancel = nil
	if cancel != nil {
		cancel()
	}
	return true
}

func (s *TaskSlot) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
	s.current = 0
	s.cancel = nil
}
