package events

import "github.com/lulo-labs/lulo-sc/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

type payloadEvent interface {
	Event() *types.Event
}

// Buffer collects events emitted while a transaction runs so the node can
// publish them only once the transaction commits.
type Buffer struct {
	events []*types.Event
}

// Emit records the payload of events that expose one. Other events are kept
// with their type only.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	if p, ok := evt.(payloadEvent); ok {
		if payload := p.Event(); payload != nil {
			b.events = append(b.events, payload.Clone())
			return
		}
	}
	b.events = append(b.events, &types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []*types.Event {
	if b == nil {
		return nil
	}
	out := make([]*types.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.events = nil
}

// Committed is an event that belongs to a committed transaction. Sequence is
// assigned by the event journal.
type Committed struct {
	Sequence  uint64      `json:"sequence"`
	Slot      uint64      `json:"slot"`
	Timestamp int64       `json:"timestamp"`
	TxHash    string      `json:"txHash"`
	Index     int         `json:"index"`
	Event     types.Event `json:"event"`
}

// Sink consumes committed events after the state they describe is durable.
type Sink interface {
	HandleCommitted([]Committed) error
}
