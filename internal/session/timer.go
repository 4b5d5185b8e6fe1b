package session

import "time"

// timerSlot holds at most one pending timer. Arming cancels the previous
// timer, and a callback that lost the race to stop or re-arm is dropped.
//
// A slot belongs to one Session and is only touched with the session lock
// held; callbacks run with the lock held.
type timerSlot struct {
	timer *time.Timer
	seq   uint64
}

func (t *timerSlot) arm(s *Session, d time.Duration, fire func()) {
	t.stop()
	seq := t.seq
	t.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.seq != seq || s.closed {
			return
		}
		t.timer = nil
		fire()
	})
}

func (t *timerSlot) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
}

func (t *timerSlot) pending() bool {
	return t.timer != nil
}
