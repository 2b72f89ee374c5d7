package replication

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/frostveil-network/guardhub/guardhub/duration"
)

// Mute is a cached mute on a downstream server, reconstructed from a
// replicated event.
type Mute struct {
	PlayerID     uuid.UUID
	Reason       string
	Expiration   duration.Duration
	PunishmentID uuid.UUID
}

// Ongoing reports whether the mute has not yet expired.
func (m Mute) Ongoing() bool {
	return m.Expiration.IsPermanent() || m.Expiration.Span() > 0
}

// MuteCache is the receiving side of mute replication: an in-memory cache of
// mutes keyed by punishment id, updated idempotently from the event stream
// and consulted wherever chat gating is needed on this server.
type MuteCache struct {
	log *slog.Logger

	mu    sync.RWMutex
	mutes map[uuid.UUID]Mute
}

// NewMuteCache ...
func NewMuteCache(log *slog.Logger) *MuteCache {
	return &MuteCache{
		log:   log,
		mutes: make(map[uuid.UUID]Mute),
	}
}

// Receive decodes a raw channel payload and applies it. A malformed payload
// is logged and dropped; it never blocks later events.
func (c *MuteCache) Receive(payload []byte) {
	ev, err := DecodeMuteEvent(payload)
	if err != nil {
		c.log.Error("dropping malformed mute event", "error", err)
		return
	}
	c.Apply(ev)
}

// Apply updates the cache from a single event. All three kinds are
// idempotent: applying the same event twice leaves the cache in the same
// state as applying it once.
func (c *MuteCache) Apply(ev MuteEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case EventAdd:
		c.mutes[ev.PunishmentID] = Mute{
			PlayerID:     ev.PlayerID,
			Reason:       ev.Reason,
			Expiration:   duration.FromTimestamp(ev.Expiration),
			PunishmentID: ev.PunishmentID,
		}
	case EventRemove:
		delete(c.mutes, ev.PunishmentID)
	case EventUpdate:
		mute, ok := c.mutes[ev.PunishmentID]
		if !ok {
			return
		}
		mute.Reason = ev.Reason
		mute.Expiration = duration.FromTimestamp(ev.Expiration)
		c.mutes[ev.PunishmentID] = mute
	}
}

// Muted returns the ongoing mute of a player with the furthest-future
// expiration, if any.
func (c *MuteCache) Muted(playerID uuid.UUID) (Mute, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		longest Mute
		found   bool
	)
	for _, mute := range c.mutes {
		if mute.PlayerID != playerID || !mute.Ongoing() {
			continue
		}
		if !found || mute.Expiration.Compare(longest.Expiration) > 0 {
			longest, found = mute, true
		}
	}
	return longest, found
}

// Mute returns the cache entry for a punishment id, if present.
func (c *MuteCache) Mute(punishmentID uuid.UUID) (Mute, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mute, ok := c.mutes[punishmentID]
	return mute, ok
}

// Len ...
func (c *MuteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mutes)
}
