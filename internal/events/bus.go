package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/clipdeck/internal/id"
)

// Subscriber receives broadcast events on Events until Done is closed.
type Subscriber struct {
	SubscribedAt time.Time
	Events       chan Event
	Done         chan struct{}
	ID           string
	Name         string
	// TimelineID filters delivery to one timeline. Empty receives everything.
	TimelineID string
}

// Bus queues emitted events and broadcasts them to subscribers from one goroutine.
// Slow subscribers lose events rather than stall the editor.
type Bus struct {
	subscribers map[string]*Subscriber
	events      chan Event
	logger      *slog.Logger
	wg          sync.WaitGroup
	mu          sync.RWMutex

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewBus creates a Bus with a queue of the given size.
func NewBus(logger *slog.Logger, queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		events:      make(chan Event, queueSize),
		logger:      logger,
	}
}

// Start runs the broadcast loop until ctx is cancelled or the queue is closed.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	b.logger.Info("event bus starting")

	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.broadcast(event)
		case <-ctx.Done():
			b.logger.Info("event bus stopping")
			return
		}
	}
}

// Shutdown stops accepting events, drains the queue, and closes every subscriber.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.shutdownMu.Lock()
	if b.shutdown {
		b.shutdownMu.Unlock()
		return nil
	}
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range b.events {
			b.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("event drain timeout, some events may be lost")
	}

	b.wg.Wait()
	b.closeAll()
	b.logger.Info("event bus shutdown complete")
	return nil
}

// Emit queues an event. It never blocks; a full queue drops the event.
func (b *Bus) Emit(event Event) {
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		return
	}

	select {
	case b.events <- event:
	default:
		b.logger.Error("event queue full, dropping event",
			slog.String("event_type", string(event.Type)),
			slog.String("timeline_id", event.TimelineID))
	}
}

// Subscribe registers a subscriber. timelineID may be empty to receive all events.
func (b *Bus) Subscribe(name, timelineID string) (*Subscriber, error) {
	subID, err := id.Generate(id.PrefixSubscriber)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		ID:           subID,
		Name:         name,
		TimelineID:   timelineID,
		Events:       make(chan Event, 100),
		Done:         make(chan struct{}),
		SubscribedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	total := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Debug("event subscriber added",
		slog.String("subscriber_id", sub.ID),
		slog.String("name", name),
		slog.Int("total_subscribers", total))
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channels.
func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	sub, ok := b.subscribers[subscriberID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, subscriberID)
	b.mu.Unlock()

	close(sub.Done)
	close(sub.Events)

	b.logger.Debug("event subscriber removed",
		slog.String("subscriber_id", subscriberID),
		slog.Duration("duration", time.Since(sub.SubscribedAt)))
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) broadcast(event Event) {
	var delivered, dropped int

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.TimelineID != "" && event.TimelineID != "" && sub.TimelineID != event.TimelineID {
			continue
		}
		select {
		case sub.Events <- event:
			delivered++
		default:
			dropped++
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", sub.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	b.logger.Debug("event broadcast",
		slog.String("event_type", string(event.Type)),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))
}

func (b *Bus) closeAll() {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[string]*Subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.Done)
		close(sub.Events)
	}
}
