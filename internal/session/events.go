package session

// EventType names a session event pushed to live listeners.
type EventType string

const (
	EventState     EventType = "state"
	EventTick      EventType = "tick"
	EventSubmitted EventType = "submitted"
)

// Event is a state change observed by listeners of a session.
type Event struct {
	Type     EventType
	State    State
	TimeLeft int
	Outcome  *Outcome
}

const listenerBuffer = 16

// Listen registers a listener. Events are dropped for a listener whose
// buffer is full, except that the newest event always replaces the oldest.
// The returned func detaches the listener.
func (s *Session) Listen() (<-chan Event, func()) {
	ch := make(chan Event, listenerBuffer)

	s.mu.Lock()
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
	}
}

func (s *Session) emitLocked(ev Event) {
	for ch := range s.listeners {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
