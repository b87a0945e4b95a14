// Package changefeed delivers row-change notifications to in-process observers.
// Writers publish events; readers subscribe with a table/column filter and must
// Close their subscription when done.
package changefeed

import (
	"context"
	"fmt"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Event describes one row change.
type Event struct {
	Table     string         `json:"table"`
	Type      EventType      `json:"type"`
	Record    map[string]any `json:"record,omitempty"`
	OldRecord map[string]any `json:"old_record,omitempty"`
}

// Value returns field from the new record, falling back to the old one (deletes).
func (e Event) Value(field string) string {
	if v, ok := e.Record[field]; ok && v != nil {
		return fmt.Sprint(v)
	}
	if v, ok := e.OldRecord[field]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// Filter selects events for one table, optionally narrowed to rows whose
// Column equals Value.
type Filter struct {
	Table  string
	Column string
	Value  string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Column == "" {
		return true
	}
	return e.Value(f.Column) == f.Value
}

// Handler receives matching events. It runs on the subscription's own goroutine.
type Handler func(Event)

// Subscription is a registered observer. Close is idempotent.
type Subscription interface {
	Close()
}

// Feed is implemented by every change transport.
type Feed interface {
	Subscribe(filter Filter, handler Handler) (Subscription, error)
	Publish(ctx context.Context, event Event) error
	Close() error
}
