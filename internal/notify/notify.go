// Package notify carries user-facing notifications alongside a request.
//
// Services report outcomes with Success or Failure; the HTTP layer copies the
// collected notifications into the response envelope. Without a collector in
// the context both calls are no-ops.
package notify

import (
	"context"
	"sync"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Collector struct {
	mu    sync.Mutex
	items []Notification
}

func (c *Collector) add(n Notification) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

// Items returns a copy of the collected notifications.
func (c *Collector) Items() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

type ctxKey struct{}

// WithCollector returns a context carrying a fresh collector.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, ctxKey{}, c), c
}

// From returns the collector stored in ctx, or nil.
func From(ctx context.Context) *Collector {
	c, _ := ctx.Value(ctxKey{}).(*Collector)
	return c
}

func Success(ctx context.Context, message string) {
	if c := From(ctx); c != nil {
		c.add(Notification{Level: LevelSuccess, Message: message})
	}
}

func Failure(ctx context.Context, message string) {
	if c := From(ctx); c != nil {
		c.add(Notification{Level: LevelError, Message: message})
	}
}
