package index

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies graph lifecycle events.
type EventKind string

const (
	// BuildStarted fires when a full build begins.
	BuildStarted EventKind = "build_started"

	// BuildCompleted fires when a full build finishes.
	BuildCompleted EventKind = "build_completed"

	// GraphRebuilt fires whenever the in-memory graph is swapped, both after
	// full builds and incremental updates.
	GraphRebuilt EventKind = "graph_rebuilt"
)

// Event is one graph lifecycle notification.
type Event struct {
	ID        string        `json:"id"`
	Kind      EventKind     `json:"kind"`
	NodeCount int           `json:"node_count,omitempty"`
	EdgeCount int           `json:"edge_count,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

func newEvent(kind EventKind) Event {
	return Event{ID: uuid.NewString(), Kind: kind}
}

// Subscribe registers a listener for graph events. The returned cancel
// function removes the subscription. Slow subscribers drop events rather
// than blocking builds.
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.subsMu.Unlock()
	}
	return ch, cancel
}

func (s *Service) broadcast(event Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
