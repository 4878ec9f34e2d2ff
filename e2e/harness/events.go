package harness

import (
	"context"
	"fmt"
	"sync"
)

// EventKind identifies what an Event relays
type EventKind int

const (
	EventStdout EventKind = iota
	EventStderr
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventStdout:
		return "stdout"
	case EventStderr:
		return "stderr"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ExitStatus describes how the shell process ended. Code is -1 when the
// process was killed by a signal or never started.
type ExitStatus struct {
	Code   int
	Signal string
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return "signal " + s.Signal
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// Event is one stdout chunk, stderr chunk, or the final close.
type Event struct {
	Kind   EventKind
	Data   string
	Status ExitStatus
}

// hub fans events out to subscribers. Each subscriber has its own unbounded
// queue so a slow reader never stalls the pumps.
type hub struct {
	mu    sync.Mutex
	subs  map[*subscription]struct{}
	final *Event
}

type subscription struct {
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
	out   chan Event
}

func (h *hub) subscribe(ctx context.Context) <-chan Event {
	sub := &subscription{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}

	h.mu.Lock()
	if h.final != nil {
		sub.push(*h.final)
	} else {
		if h.subs == nil {
			h.subs = make(map[*subscription]struct{})
		}
		h.subs[sub] = struct{}{}
	}
	h.mu.Unlock()

	go func() {
		defer h.unsubscribe(sub)
		sub.forward(ctx)
	}()
	return sub.out
}

func (h *hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

// publish queues ev for every subscriber. Nothing is published after close.
func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.final != nil {
		return
	}
	for sub := range h.subs {
		sub.push(ev)
	}
	if ev.Kind == EventClose {
		h.final = &ev
		h.subs = nil
	}
}

func (s *subscription) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// forward delivers queued events until the close event or ctx ends, then
// closes out.
func (s *subscription) forward(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range pending {
			select {
			case s.out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind == EventClose {
				return
			}
		}

		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		}
	}
}
