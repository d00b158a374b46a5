package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a copy of the event that shares no attribute storage.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Type: e.Type, Attributes: attrs}
}

// Receipt summarises a committed transaction.
type Receipt struct {
	TxHash     string  `json:"hash"`
	Type       string  `json:"type"`
	Sender     string  `json:"sender"`
	Slot       uint64  `json:"slot"`
	Timestamp  int64   `json:"timestamp"`
	Root       string  `json:"root"`
	ContractID string  `json:"contractId,omitempty"`
	Events     []Event `json:"events"`
}
