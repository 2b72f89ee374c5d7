package punishment

import (
	"github.com/frostveil-network/guardhub/guardhub/duration"
)

// Kind is the behavioral category of a punishment.
type Kind int

const (
	// KindBan denies connecting through the proxy.
	KindBan Kind = iota
	// KindMute denies chat.
	KindMute
	// KindKick is a one-shot disconnect with no duration.
	KindKick
)

// Temporal reports whether punishments of this kind carry a duration.
func (k Kind) Temporal() bool {
	return k == KindBan || k == KindMute
}

// String ...
func (k Kind) String() string {
	switch k {
	case KindBan:
		return "ban"
	case KindMute:
		return "mute"
	case KindKick:
		return "kick"
	}
	return "unknown"
}

// Type is the persisted punishment type name. For temporal kinds the
// permanent variant is derived from the duration, never stored independently.
type Type string

const (
	TypeBan           Type = "BAN"
	TypePermanentBan  Type = "PERMANENT_BAN"
	TypeMute          Type = "MUTE"
	TypePermanentMute Type = "PERMANENT_MUTE"
	TypeKick          Type = "KICK"
)

// Types returns the persisted type names a kind may appear under.
func (k Kind) Types() []Type {
	switch k {
	case KindBan:
		return []Type{TypeBan, TypePermanentBan}
	case KindMute:
		return []Type{TypeMute, TypePermanentMute}
	case KindKick:
		return []Type{TypeKick}
	}
	return nil
}

// typeFor derives the persisted type of a kind with the given duration.
func typeFor(k Kind, d duration.Duration) Type {
	switch k {
	case KindBan:
		if d.IsPermanent() {
			return TypePermanentBan
		}
		return TypeBan
	case KindMute:
		if d.IsPermanent() {
			return TypePermanentMute
		}
		return TypeMute
	}
	return TypeKick
}

// kindOf maps a persisted type name back to its kind.
func kindOf(t Type) (Kind, bool) {
	switch t {
	case TypeBan, TypePermanentBan:
		return KindBan, true
	case TypeMute, TypePermanentMute:
		return KindMute, true
	case TypeKick:
		return KindKick, true
	}
	return 0, false
}
