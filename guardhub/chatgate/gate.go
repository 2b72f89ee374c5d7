// Package chatgate decides, per chat message, whether a player may speak on
// the proxy. It keeps a small per-player state machine so that the hot path
// is a map lookup and the authoritative store is only consulted on the first
// message after a connect.
package chatgate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frostveil-network/guardhub/guardhub/locale"
	"github.com/frostveil-network/guardhub/guardhub/punishment"
)

// lookupTimeout bounds the synchronous mute lookup performed for a player's
// first chat message.
const lookupTimeout = time.Second * 5

type state uint8

const (
	stateNotMuted state = iota
	stateMuted
	stateLoading
)

// Mutes is the slice of the punishment lifecycle the gate consults. It is
// implemented by punishment.Manager.
type Mutes interface {
	// CurrentMute returns the longest ongoing mute of a player, or nil.
	CurrentMute(ctx context.Context, playerID uuid.UUID) (*punishment.Punishment, error)
	// Cancel reconciles a mute that has run out.
	Cancel(ctx context.Context, p *punishment.Punishment) error
}

type entry struct {
	state state
	mute  *punishment.Punishment
}

// Gate tracks the mute state of every connected player.
type Gate struct {
	log   *slog.Logger
	mutes Mutes

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewGate ...
func NewGate(log *slog.Logger, mutes Mutes) *Gate {
	return &Gate{
		log:     log,
		mutes:   mutes,
		entries: map[uuid.UUID]*entry{},
	}
}

// HandleChat decides whether the player's chat message may pass. When it may
// not, the returned message tells the player why. The first message of a
// player blocks on a store lookup and is then re-evaluated; messages sent
// while that lookup is in flight are denied.
func (g *Gate) HandleChat(ctx context.Context, playerID uuid.UUID) (bool, string) {
	for {
		g.mu.Lock()
		e, ok := g.entries[playerID]
		if !ok {
			e = &entry{state: stateLoading}
			g.entries[playerID] = e
			g.mu.Unlock()
			resolved, err := g.load(ctx, playerID)
			if err != nil {
				return false, locale.Translate("error.internal")
			}
			if !resolved {
				return false, locale.Translate("chat.loading")
			}
			continue
		}
		switch e.state {
		case stateLoading:
			g.mu.Unlock()
			return false, locale.Translate("chat.loading")
		case stateNotMuted:
			g.mu.Unlock()
			return true, ""
		}
		mute := e.mute
		if mute.IsOngoing() {
			g.mu.Unlock()
			return false, mute.FullReason()
		}
		// The mute ran out since it was loaded. Reconcile it in the
		// background and deny this one message while that happens.
		e.state = stateLoading
		e.mute = nil
		g.mu.Unlock()
		go g.expire(playerID, mute)
		return false, locale.Translate("chat.loading")
	}
}

// HandleDisconnect drops the player's gate entry. The next message after a
// reconnect loads fresh state.
func (g *Gate) HandleDisconnect(playerID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, playerID)
}

// Muted reports whether the gate currently holds a loaded, ongoing mute for
// the player. A player whose state is still loading reports false.
func (g *Gate) Muted(playerID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[playerID]
	return ok && e.state == stateMuted && e.mute.IsOngoing()
}

// load performs the synchronous mute lookup for a first message, reporting
// whether the entry was resolved. A lookup failure drops the entry so a
// later message retries it.
func (g *Gate) load(ctx context.Context, playerID uuid.UUID) (resolved bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	mute, err := g.mutes.CurrentMute(ctx, playerID)
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[playerID]
	if !ok {
		// The player disconnected mid-lookup.
		return false, nil
	}
	if err != nil {
		g.log.Error("failed to load mute state", "player", playerID, "error", err)
		delete(g.entries, playerID)
		return false, err
	}
	if mute != nil {
		e.state = stateMuted
		e.mute = mute
	} else {
		e.state = stateNotMuted
	}
	return true, nil
}

// expire reconciles a mute that ran out while loaded and releases the
// player's entry back to the not-muted state.
func (g *Gate) expire(playerID uuid.UUID, mute *punishment.Punishment) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	if err := g.mutes.Cancel(ctx, mute); err != nil {
		g.log.Error("failed to reconcile expired mute", "player", playerID, "punishment", mute.ID(), "error", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[playerID]; ok && e.state == stateLoading {
		e.state = stateNotMuted
	}
}
