package handle

import (
	wasmmarshal "github.com/wippyai/wasm-marshal"
)

// Handle is the foreign address of a host object stored in a Table.
// Handle 0 is reserved and always invalid.
type Handle = wasmmarshal.Ptr

// EventType identifies a handle lifecycle notification.
type EventType uint8

const (
	EventInserted EventType = iota
	EventTaken
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (t EventType) String() string {
	switch t {
	case EventInserted:
		return "inserted"
	case EventTaken:
		return "taken"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer. Func observers cannot be
// unsubscribed; use a named type when that matters.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }

// Dropper is optionally implemented by stored values that need cleanup
// when the table drops them instead of handing them back to the host.
type Dropper interface {
	Drop()
}
