package bridge

import "time"

// PollList holds every poll scheduled against one device. Callers must hold
// the owning device slot's mutex around every call; PollList itself does no
// locking of its own.
type PollList struct {
	records []Poll
}

func NewPollList() *PollList {
	return &PollList{}
}

// Add inserts a new poll, or, when one with the same Identity already
// exists, keeps whichever Period is shorter and resets NextRead so the
// merged record is due immediately.
func (l *PollList) Add(p Poll) error {
	for i := range l.records {
		if l.records[i].Identity == p.Identity {
			if p.Period.lessThan(l.records[i].Period) {
				l.records[i].Period = p.Period
				l.records[i].NextRead = time.Time{}
			}
			return nil
		}
	}
	l.records = append(l.records, p)
	return nil
}

// Delete removes the poll matching id. Ordering among the remaining records
// is unspecified; the scheduler doesn't depend on it.
func (l *PollList) Delete(id Identity) error {
	for i := range l.records {
		if l.records[i].Identity == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (l *PollList) Len() int {
	return len(l.records)
}

// forEach lets the scheduler mutate NextRead in place while iterating.
func (l *PollList) forEach(fn func(*Poll)) {
	for i := range l.records {
		fn(&l.records[i])
	}
}

// Destroy drops every record. Called once by a worker as it tears down.
func (l *PollList) Destroy() {
	l.records = nil
}
