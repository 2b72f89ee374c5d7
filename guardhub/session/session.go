// Package session tracks players currently connected through the proxy and
// exposes the enforcement capabilities punishments need: disconnecting a
// player and delivering a message. Both are fire-and-forget.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Controller is the connection-side implementation of enforcement for one
// player. Implementations must tolerate being called after the player has
// already disconnected.
type Controller interface {
	// Disconnect closes the player's connection with the given message.
	Disconnect(message string)
	// Message delivers a chat message to the player.
	Message(message string)
}

// Session represents a player connected through the proxy.
type Session struct {
	playerID   uuid.UUID
	name       string
	controller Controller
}

// NewSession ...
func NewSession(playerID uuid.UUID, name string, controller Controller) *Session {
	return &Session{playerID: playerID, name: name, controller: controller}
}

// PlayerID ...
func (s *Session) PlayerID() uuid.UUID {
	return s.playerID
}

// Name ...
func (s *Session) Name() string {
	return s.name
}

// Registry holds the sessions of all online players.
type Registry struct {
	sessions sync.Map
}

// NewRegistry ...
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a session, replacing any previous session of the same player.
func (r *Registry) Add(s *Session) {
	r.sessions.Store(s.playerID, s)
}

// Remove ...
func (r *Registry) Remove(playerID uuid.UUID) {
	r.sessions.Delete(playerID)
}

// Lookup ...
func (r *Registry) Lookup(playerID uuid.UUID) (*Session, bool) {
	v, ok := r.sessions.Load(playerID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Disconnect disconnects the player if they are online, reporting whether a
// session was found.
func (r *Registry) Disconnect(playerID uuid.UUID, message string) bool {
	s, ok := r.Lookup(playerID)
	if !ok {
		return false
	}
	if s.controller != nil {
		s.controller.Disconnect(message)
	}
	r.sessions.Delete(playerID)
	return true
}

// Message sends a message to the player if they are online.
func (r *Registry) Message(playerID uuid.UUID, message string) {
	if s, ok := r.Lookup(playerID); ok && s.controller != nil {
		s.controller.Message(message)
	}
}
