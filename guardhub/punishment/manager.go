package punishment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/frostveil-network/guardhub/guardhub/duration"
	"github.com/frostveil-network/guardhub/guardhub/storage"
)

// Enforcer applies the immediate effects of a punishment on a connected
// player. Both capabilities are best-effort and fire-and-forget; a player who
// is not connected is simply unaffected.
type Enforcer interface {
	// Disconnect closes the player's connection, reporting whether a
	// connected player was found.
	Disconnect(playerID uuid.UUID, message string) bool
	// Message delivers a message to the player if connected.
	Message(playerID uuid.UUID, message string)
}

// Notifier is told about every mute state change so the change can be
// replicated to downstream servers.
type Notifier interface {
	MuteAdded(p *Punishment)
	MuteRemoved(p *Punishment)
	MuteUpdated(p *Punishment)
}

// Manager creates punishments and drives their lifecycle against the
// authoritative store.
type Manager struct {
	log      *slog.Logger
	store    *storage.Store
	enforcer Enforcer
	notifier Notifier
}

// NewManager ...
func NewManager(log *slog.Logger, store *storage.Store, enforcer Enforcer) *Manager {
	return &Manager{log: log, store: store, enforcer: enforcer}
}

// SetNotifier wires the mute replication notifier. Set once during startup.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// NewBan creates a ban in memory. It becomes durable on Punish.
func (m *Manager) NewBan(playerID uuid.UUID, playerName, reason string, d duration.Duration) *Punishment {
	return m.newPunishment(playerID, playerName, reason, KindBan, d)
}

// NewMute creates a mute in memory. It becomes durable on Punish.
func (m *Manager) NewMute(playerID uuid.UUID, playerName, reason string, d duration.Duration) *Punishment {
	return m.newPunishment(playerID, playerName, reason, KindMute, d)
}

// NewKick creates a kick. A kick carries no duration and is never persisted.
func (m *Manager) NewKick(playerID uuid.UUID, playerName, reason string) *Punishment {
	return m.newPunishment(playerID, playerName, reason, KindKick, duration.Zero())
}

// newPunishment ...
func (m *Manager) newPunishment(playerID uuid.UUID, playerName, reason string, kind Kind, d duration.Duration) *Punishment {
	return &Punishment{
		id:         uuid.New(),
		playerID:   playerID,
		playerName: playerName,
		reason:     reason,
		kind:       kind,
		dur:        d,
		valid:      true,
	}
}

// Punish applies the punishment: the enforcement side effect is attempted
// first, unconditionally, then the record is persisted. The two are not
// transactionally coupled; a store failure surfaces to the caller, but a
// player already disconnected stays disconnected.
func (m *Manager) Punish(ctx context.Context, p *Punishment) error {
	if p.kind == KindKick {
		if !m.disconnect(p) {
			return fmt.Errorf("%w: player %s is not connected and cannot be kicked", ErrInvalidState, p.playerName)
		}
		m.log.Info("kicked player", "player", p.playerName, "reason", p.reason)
		return nil
	}

	if err := p.checkValidity(); err != nil {
		return err
	}

	// Pin the expiration now, so that neither clock drift nor repeated
	// reads can move it after the row is written.
	p.dur = p.dur.Absolute()

	if p.kind == KindBan {
		m.disconnect(p)
	}

	err := m.store.Insert(ctx, storage.Record{
		PunishmentID: p.id,
		PlayerID:     p.playerID,
		PlayerName:   strings.ToLower(p.playerName),
		Type:         string(p.Type()),
		Expiration:   p.dur.ExpirationMillis(),
		Reason:       p.reason,
	})
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", p.kind, err)
	}

	if p.kind == KindMute {
		if m.notifier != nil {
			m.notifier.MuteAdded(p)
		}
		m.message(p)
	}
	m.log.Info("applied punishment", "type", string(p.Type()), "player", p.playerName, "punishment", p.id, "expiration", p.dur.ExpirationString())
	return nil
}

// Cancel removes the punishment from the store and invalidates it. An
// expired punishment may still be cancelled; that is how expired rows get
// reconciled. Cancelling a kick is unsupported.
func (m *Manager) Cancel(ctx context.Context, p *Punishment) error {
	if p.kind == KindKick {
		return fmt.Errorf("%w: a kick cannot be cancelled", ErrUnsupported)
	}
	if !p.valid {
		return fmt.Errorf("%w: already cancelled", ErrInvalidState)
	}

	if err := m.store.Delete(ctx, p.id); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", p.kind, err)
	}
	if p.kind == KindMute && m.notifier != nil {
		m.notifier.MuteRemoved(p)
	}
	p.valid = false
	m.log.Info("cancelled punishment", "type", string(p.Type()), "player", p.playerName, "punishment", p.id)
	return nil
}

// Change atomically replaces the reason and duration of a punishment and
// returns a new instance reflecting the update; the old instance is
// invalidated so stale cached references cannot be acted on. Changing a kick
// is unsupported.
func (m *Manager) Change(ctx context.Context, p *Punishment, newDuration duration.Duration, newReason string) (*Punishment, error) {
	if p.kind == KindKick {
		return nil, fmt.Errorf("%w: a kick cannot be changed", ErrUnsupported)
	}
	if err := p.checkValidity(); err != nil {
		return nil, err
	}

	nd := newDuration.Absolute()
	if err := m.store.Update(ctx, p.id, newReason, nd.ExpirationMillis()); err != nil {
		return nil, fmt.Errorf("failed to change %s: %w", p.kind, err)
	}

	np := &Punishment{
		id:         p.id,
		playerID:   p.playerID,
		playerName: p.playerName,
		reason:     newReason,
		kind:       p.kind,
		dur:        nd,
		valid:      true,
	}
	p.valid = false

	switch np.kind {
	case KindBan:
		// A still-connected banned player should see the updated text.
		m.disconnect(np)
	case KindMute:
		if m.notifier != nil {
			m.notifier.MuteUpdated(np)
		}
		m.message(np)
	}
	m.log.Info("changed punishment", "type", string(np.Type()), "player", np.playerName, "punishment", np.id, "expiration", nd.ExpirationString())
	return np, nil
}

// PunishmentsOf returns all persisted punishments of the given kinds for a
// player. With no kinds given, bans and mutes are queried.
func (m *Manager) PunishmentsOf(ctx context.Context, playerID uuid.UUID, kinds ...Kind) ([]*Punishment, error) {
	if len(kinds) == 0 {
		kinds = []Kind{KindBan, KindMute}
	}
	var types []string
	for _, kind := range kinds {
		for _, t := range kind.Types() {
			types = append(types, string(t))
		}
	}

	records, err := m.store.ByPlayerAndTypes(ctx, playerID, types...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up punishments: %w", err)
	}
	punishments := make([]*Punishment, 0, len(records))
	for _, rec := range records {
		p, err := fromRecord(rec)
		if err != nil {
			m.log.Error("skipping malformed punishment row", "punishment", rec.PunishmentID, "error", err)
			continue
		}
		punishments = append(punishments, p)
	}
	return punishments, nil
}

// FromID returns the persisted punishment with the given id, reporting
// whether it exists.
func (m *Manager) FromID(ctx context.Context, punishmentID uuid.UUID) (*Punishment, bool, error) {
	rec, ok, err := m.store.ByID(ctx, punishmentID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up punishment: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	p, err := fromRecord(rec)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// IsBanned reports whether any ban row exists for the player. Expired rows
// count until they are reconciled; validity is enforced lazily.
func (m *Manager) IsBanned(ctx context.Context, playerID uuid.UUID) (bool, error) {
	bans, err := m.PunishmentsOf(ctx, playerID, KindBan)
	if err != nil {
		return false, err
	}
	return len(bans) > 0, nil
}

// CurrentMute returns the longest ongoing mute of the player, or nil when
// the player is not muted right now. Expired rows are ignored here, not
// reconciled.
func (m *Manager) CurrentMute(ctx context.Context, playerID uuid.UUID) (*Punishment, error) {
	mutes, err := m.PunishmentsOf(ctx, playerID, KindMute)
	if err != nil {
		return nil, err
	}
	ongoing := make([]*Punishment, 0, len(mutes))
	for _, p := range mutes {
		if p.IsOngoing() {
			ongoing = append(ongoing, p)
		}
	}
	return Longest(ongoing), nil
}

// Longest deterministically selects the punishment with the furthest-future
// expiration; permanent sorts after any finite expiration. Ties keep the
// earliest element, so the choice is stable within one query. Returns nil
// for an empty slice.
func Longest(punishments []*Punishment) *Punishment {
	return lo.MaxBy(punishments, func(a, b *Punishment) bool {
		return a.Duration().Compare(b.Duration()) > 0
	})
}

// message tells a connected player about a mute that now applies to them.
func (m *Manager) message(p *Punishment) {
	if m.enforcer != nil {
		m.enforcer.Message(p.playerID, p.FullReason())
	}
}

// disconnect ...
func (m *Manager) disconnect(p *Punishment) bool {
	if m.enforcer == nil {
		return false
	}
	return m.enforcer.Disconnect(p.playerID, p.FullReason())
}

// fromRecord ...
func fromRecord(rec storage.Record) (*Punishment, error) {
	kind, ok := kindOf(Type(rec.Type))
	if !ok {
		return nil, errors.New("unknown punishment type " + rec.Type)
	}
	return &Punishment{
		id:         rec.PunishmentID,
		playerID:   rec.PlayerID,
		playerName: rec.PlayerName,
		reason:     rec.Reason,
		kind:       kind,
		dur:        duration.FromTimestamp(rec.Expiration),
		valid:      true,
	}, nil
}
