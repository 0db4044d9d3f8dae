package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Wildcard subscribes a listener to every event name.
const Wildcard = "*"

var ErrInvalidEvent = errors.New("invalid_event")

type Event struct {
	Name    string
	Payload any
}

// Listener handles one published event inside the publisher's transaction.
// Returning an error aborts Publish and therefore the caller's transaction.
type Listener func(ctx context.Context, tx *gorm.DB, e Event) error

type Subscription struct {
	Name     string
	Listener Listener
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Subscriptions []Subscription `group:"event.listeners"`
}

// Bus dispatches events synchronously, in subscription order.
type Bus struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs []Subscription
}

func NewBus(p Params) *Bus {
	b := &Bus{log: p.Log.Named("event.bus")}
	for _, sub := range p.Subscriptions {
		b.Subscribe(sub.Name, sub.Listener)
	}
	return b
}

func (b *Bus) Subscribe(name string, listener Listener) {
	if listener == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, Subscription{Name: name, Listener: listener})
}

// Publish runs every listener subscribed to name, or to Wildcard, before
// returning.
func (b *Bus) Publish(ctx context.Context, tx *gorm.DB, name string, payload any) error {
	if name == "" || name == Wildcard {
		return fmt.Errorf("%w: %q", ErrInvalidEvent, name)
	}

	b.mu.RLock()
	subs := make([]Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	e := Event{Name: name, Payload: payload}
	for _, sub := range subs {
		if sub.Name != Wildcard && sub.Name != name {
			continue
		}
		if err := sub.Listener(ctx, tx, e); err != nil {
			b.log.Warn("event listener failed", zap.String("event", name), zap.Error(err))
			return fmt.Errorf("publish %s: %w", name, err)
		}
	}
	return nil
}
