// Package replication pushes mute state from the authoritative proxy to
// every downstream game server and applies it idempotently on the receiving
// side. Replication is one-way; downstream caches are never written back.
package replication

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ChannelName is the named channel mute events travel on.
const ChannelName = "guardhub:mutedata"

// EventKind ...
type EventKind int

const (
	// EventAdd inserts or overwrites the cache entry for a punishment id.
	EventAdd EventKind = iota
	// EventRemove deletes the cache entry for a punishment id.
	EventRemove
	// EventUpdate overwrites the reason and expiration of an existing entry.
	EventUpdate
)

// String ...
func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventRemove:
		return "remove"
	case EventUpdate:
		return "update"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MuteEvent is the wire record of a mute add/remove/update. Every event
// carries the full current state of the mute, never a delta. Expiration is a
// unix millisecond timestamp, with duration.MaxMillis as the permanent
// sentinel.
type MuteEvent struct {
	PlayerID     uuid.UUID `json:"uuid"`
	Reason       string    `json:"reason"`
	Expiration   int64     `json:"expiration"`
	Kind         EventKind `json:"type"`
	PunishmentID uuid.UUID `json:"punishment_id"`
}

// Marshal encodes the event for transmission. A failure here indicates a
// defect rather than a transient condition and is escalated to the caller.
func (ev MuteEvent) Marshal() ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize mute event: %w", err)
	}
	return payload, nil
}

// DecodeMuteEvent decodes a received payload into a MuteEvent.
func DecodeMuteEvent(payload []byte) (MuteEvent, error) {
	var ev MuteEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return MuteEvent{}, fmt.Errorf("failed to parse mute event: %w", err)
	}
	if ev.Kind < EventAdd || ev.Kind > EventUpdate {
		return MuteEvent{}, fmt.Errorf("unknown mute event type %d", int(ev.Kind))
	}
	return ev, nil
}
