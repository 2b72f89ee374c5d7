package srv

import (
	"log/slog"
	"sync"
)

// Manager holds every registered downstream server and keeps their statuses
// fresh.
type Manager struct {
	log     *slog.Logger
	servers sync.Map

	// onReachable is called with a server's identifier on every probe
	// that finds it online. Deliveries that failed while the server was
	// fine get retried this way too, so the callback must be cheap when
	// there is nothing to do.
	onReachable func(identifier string)
}

// NewManager ...
func NewManager(log *slog.Logger, onReachable func(identifier string)) *Manager {
	return &Manager{log: log, onReachable: onReachable}
}

// Register adds a server to the manager.
func (m *Manager) Register(serv *Server) {
	m.servers.Store(serv.Identifier(), serv)
}

// UpdateAll probes every registered server concurrently. Every answering
// server triggers the reachability callback.
func (m *Manager) UpdateAll() {
	m.servers.Range(func(_, value any) bool {
		if s, ok := value.(*Server); ok {
			go func() {
				if s.pingServer() && m.onReachable != nil {
					m.onReachable(s.Identifier())
				}
			}()
		}
		return true
	})
}

// FromIdentifier returns the server with the given identifier, or nil.
func (m *Manager) FromIdentifier(identifier string) *Server {
	if serv, ok := m.servers.Load(identifier); ok {
		return serv.(*Server)
	}
	return nil
}

// FromName returns the server with the given display name, or nil.
func (m *Manager) FromName(name string) *Server {
	for _, s := range m.All() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// All returns every registered server keyed by identifier.
func (m *Manager) All() map[string]*Server {
	result := make(map[string]*Server)
	m.servers.Range(func(key, value any) bool {
		result[key.(string)] = value.(*Server)
		return true
	})
	return result
}
