package srv

import (
	"log/slog"
	"strconv"

	"github.com/df-mc/atomic"

	"github.com/frostveil-network/guardhub/guardhub/srv/ping"
)

// Server ...
type Server struct {
	log *slog.Logger

	probe func(address string) (ping.Response, error)

	retries atomic.Int32
	conf    atomic.Value[Config]
	status  atomic.Value[Status]
}

// NewServer ...
func NewServer(log *slog.Logger, conf Config) *Server {
	srv := &Server{
		log:   log,
		probe: ping.Ping,
	}
	srv.conf.Store(conf)
	return srv
}

// pingServer probes the server once and updates its status, reporting
// whether the server answered.
func (s *Server) pingServer() (online bool) {
	response, err := s.probe(s.Address())
	if err != nil {
		s.retries.Inc()
		if s.Retries() > 5 {
			s.assumeOffline()
			s.log.Debug("server assumed offline after multiple failures", "name", s.Name(), "address", s.Address())
			s.retries.Store(0)
		}
		return false
	}
	s.retries.Store(0)

	st := Status{
		Online: true,
		PlayerCount: func() int {
			count, _ := strconv.Atoi(response.PlayerCount)
			return count
		}(),
		MaxPlayerCount: func() int {
			count, _ := strconv.Atoi(response.MaxPlayerCount)
			return count
		}(),
	}
	s.status.Store(st)
	return true
}

// assumeOffline ...
func (s *Server) assumeOffline() {
	st := Status{
		Online: false,
	}
	s.status.Store(st)
}

// Name ...
func (s *Server) Name() string {
	return s.Config().Name
}

// Identifier ...
func (s *Server) Identifier() string {
	return s.Config().Identifier
}

// Address ...
func (s *Server) Address() string {
	return s.Config().Address
}

// AgentAddress ...
func (s *Server) AgentAddress() string {
	return s.Config().AgentAddress
}

// Retries ...
func (s *Server) Retries() int32 {
	return s.retries.Load()
}

// Config ...
func (s *Server) Config() Config {
	return s.conf.Load()
}

// Status ...
func (s *Server) Status() Status {
	return s.status.Load()
}
