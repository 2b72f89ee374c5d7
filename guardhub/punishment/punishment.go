// Package punishment implements punishment records and their lifecycle:
// creation, application, cancellation and mutation against the authoritative
// store, with enforcement side effects attempted before persistence.
package punishment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/frostveil-network/guardhub/guardhub/duration"
	"github.com/frostveil-network/guardhub/guardhub/locale"
)

var (
	// ErrInvalidState is returned when an operation is attempted on a
	// punishment that has been cancelled, superseded or has expired.
	ErrInvalidState = errors.New("punishment is invalid")
	// ErrUnsupported is returned for operations a punishment kind does not
	// support, such as cancelling a kick.
	ErrUnsupported = errors.New("operation not supported for this punishment kind")
)

// Punishment is a single punishment record. Instances are created in memory
// by the Manager and become durable when punished; Change never mutates an
// existing instance but produces a replacement, so cached references can
// never observe a half-applied update.
type Punishment struct {
	id         uuid.UUID
	playerID   uuid.UUID
	playerName string
	reason     string
	kind       Kind
	dur        duration.Duration
	valid      bool
}

// ID returns the globally unique punishment id, assigned at creation and
// never reused.
func (p *Punishment) ID() uuid.UUID {
	return p.id
}

// PlayerID ...
func (p *Punishment) PlayerID() uuid.UUID {
	return p.playerID
}

// PlayerName ...
func (p *Punishment) PlayerName() string {
	return p.playerName
}

// Reason ...
func (p *Punishment) Reason() string {
	return p.reason
}

// Kind ...
func (p *Punishment) Kind() Kind {
	return p.kind
}

// Duration returns the punishment's duration. For a kick this is the zero
// duration.
func (p *Punishment) Duration() duration.Duration {
	return p.dur
}

// Valid reports whether the punishment has not been cancelled or superseded.
func (p *Punishment) Valid() bool {
	return p.valid
}

// Type returns the persisted type of the punishment. The Permanent variants
// are derived from the duration.
func (p *Punishment) Type() Type {
	return typeFor(p.kind, p.dur)
}

// IsPermanent ...
func (p *Punishment) IsPermanent() bool {
	return p.kind.Temporal() && p.dur.IsPermanent()
}

// IsOngoing reports whether the punishment's restriction is still in effect.
// A kick is never ongoing; its single effect is instantaneous.
func (p *Punishment) IsOngoing() bool {
	if !p.kind.Temporal() {
		return false
	}
	return p.dur.IsPermanent() || p.dur.Expiration().After(time.Now())
}

// checkValidity gates every mutating operation. An expired temporal
// punishment counts as invalid even while its row still exists, forcing the
// caller to reconcile before acting on it again.
func (p *Punishment) checkValidity() error {
	if !p.valid {
		return fmt.Errorf("%w: cancelled or superseded", ErrInvalidState)
	}
	if p.kind.Temporal() && !p.IsOngoing() {
		return fmt.Errorf("%w: no longer ongoing", ErrInvalidState)
	}
	return nil
}

// FullReason renders the player-facing text of this punishment, including
// the remaining time or "Permanent" for temporal kinds.
func (p *Punishment) FullReason() string {
	if !p.valid {
		return locale.Translate("punishment.invalid")
	}
	switch p.kind {
	case KindBan:
		if p.IsPermanent() {
			return locale.Translate("punishment.ban.permanent.full-reason", p.reason)
		}
		return locale.Translate("punishment.ban.temp.full-reason", p.dur.Remaining(), p.reason, p.dur.ExpirationString())
	case KindMute:
		if p.IsPermanent() {
			return locale.Translate("punishment.mute.permanent.full-reason", p.reason)
		}
		return locale.Translate("punishment.mute.temp.full-reason", p.dur.Remaining(), p.reason, p.dur.ExpirationString())
	}
	return locale.Translate("punishment.kick.full-reason", p.reason)
}
