// Package notify fans row-level change events out to live subscribers. It is
// best effort: slow subscribers drop events and nothing is replayed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/courseportal/portal/internal/models"
)

var ErrInvalidFilter = errors.New("invalid change filter")

// Publisher sends a change event to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, evt models.ChangeEvent) error
}

// Filter selects events by table, event type and an optional column=eq.value
// predicate. Empty fields match everything.
type Filter struct {
	Table  string
	Event  models.ChangeEventType
	Column string
	Value  string
}

// ParseFilter builds a Filter from subscription parameters. event may be
// empty or "*"; filter has the form column=eq.value.
func ParseFilter(table, event, filter string) (Filter, error) {
	f := Filter{Table: strings.TrimSpace(table)}

	switch e := models.ChangeEventType(strings.ToUpper(strings.TrimSpace(event))); e {
	case "", "*":
	case models.ChangeInsert, models.ChangeUpdate, models.ChangeDelete:
		f.Event = e
	default:
		return Filter{}, fmt.Errorf("%w: unknown event %q", ErrInvalidFilter, event)
	}

	filter = strings.TrimSpace(filter)
	if filter == "" {
		return f, nil
	}
	column, rest, ok := strings.Cut(filter, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("%w: only eq is supported in %q", ErrInvalidFilter, filter)
	}
	f.Column = column
	f.Value = value
	return f, nil
}

func (f Filter) Matches(evt models.ChangeEvent) bool {
	if f.Table != "" && f.Table != evt.Table {
		return false
	}
	if f.Event != "" && f.Event != evt.Type {
		return false
	}
	if f.Column != "" {
		v, ok := evt.Columns[f.Column]
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

type subscriber struct {
	filter Filter
	ch     chan models.ChangeEvent
}

// Hub fan-outs change events to all matching subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
	size int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs: make(map[int]subscriber),
		size: buffer,
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// matching events. The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, filter Filter) <-chan models.ChangeEvent {
	ch := make(chan models.ChangeEvent, h.size)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscriber{filter: filter, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish never blocks; events for slow subscribers are dropped.
func (h *Hub) Publish(_ context.Context, evt models.ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.filter.Matches(evt) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
