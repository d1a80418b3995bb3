// Package eventbus is an in-process, typed publish/subscribe dispatcher.
//
// Handlers run synchronously on the publishing goroutine, in subscription
// order. Publishing with no global bus installed is a no-op.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type subscription struct {
	id uint64
	fn func(context.Context, any)
}

// Bus is a simple in-process event dispatcher.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[reflect.Type][]subscription
}

// New creates a new Bus.
func New() *Bus { return &Bus{handlers: make(map[reflect.Type][]subscription)} }

func (b *Bus) subscribe(t reflect.Type, fn func(context.Context, any)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.handlers[t]
			for i, s := range subs {
				if s.id == id {
					subs = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(b.handlers, t)
			} else {
				b.handlers[t] = subs
			}
		})
	}
}

// emit dispatches e to all handlers of type t.
func (b *Bus) emit(ctx context.Context, t reflect.Type, e any) {
	b.mu.RLock()
	subs := b.handlers[t]
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use sets the global bus. Passing nil disables event publishing.
func Use(b *Bus) { global.Store(b) }

// SubscribeTo registers h on b.
func SubscribeTo[T any](b *Bus, h Handler[T]) (unsubscribe func()) {
	t := reflect.TypeFor[T]()
	return b.subscribe(t, func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// PublishTo sends e to the handlers of T on b.
func PublishTo[T any](ctx context.Context, b *Bus, e T) {
	b.emit(ctx, reflect.TypeFor[T](), e)
}

// Subscribe registers h with the global bus. Without a global bus it does
// nothing and returns a no-op unsubscribe.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	if b := global.Load(); b != nil {
		return SubscribeTo(b, h)
	}
	return func() {}
}

// Publish sends e through the global bus.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		PublishTo(ctx, b, e)
	}
}
