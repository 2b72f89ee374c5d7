package guardhub

import (
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/frostveil-network/guardhub/guardhub/chatgate"
	"github.com/frostveil-network/guardhub/guardhub/locale"
	"github.com/frostveil-network/guardhub/guardhub/punishment"
	"github.com/frostveil-network/guardhub/guardhub/replication"
	"github.com/frostveil-network/guardhub/guardhub/session"
	"github.com/frostveil-network/guardhub/guardhub/srv"
	"github.com/frostveil-network/guardhub/guardhub/storage"
	"github.com/frostveil-network/guardhub/guardhub/transport"
)

// GuardHub represents the main hub process. It owns the authoritative
// punishment store and pushes mute state to every downstream server.
type GuardHub struct {
	log  *slog.Logger
	conf Config

	store    *storage.Store
	sessions *session.Registry
	manager  *punishment.Manager
	gate     *chatgate.Gate
	servers  *srv.Manager
	comm     *replication.Communicator
	router   *gin.Engine

	c chan struct{}
}

// NewGuardHub creates a new instance of GuardHub.
func NewGuardHub(log *slog.Logger, conf Config) (*GuardHub, error) {
	if dsn := conf.GuardHub.SentryDsn; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			log.Error("failed to initialize sentry", "error", err)
		}
	}

	log.Info("Starting GuardHub...")

	hub := &GuardHub{
		log:  log,
		conf: conf,

		c: make(chan struct{}),
	}
	if err := hub.loadLocales(); err != nil {
		return nil, err
	}

	store, err := storage.NewStore(log, conf.GuardHub.StorePath)
	if err != nil {
		return nil, err
	}
	hub.store = store

	hub.sessions = session.NewRegistry()
	hub.manager = punishment.NewManager(log, store, hub.sessions)
	hub.gate = chatgate.NewGate(log, hub.manager)

	client := transport.NewClient(log, conf.Service.AgentKey, func(destination string) string {
		if s := hub.servers.FromIdentifier(destination); s != nil {
			return s.AgentAddress()
		}
		return ""
	})
	hub.comm = replication.NewCommunicator(log, client)
	hub.servers = srv.NewManager(log, hub.comm.OnReachable)
	hub.manager.SetNotifier(&muteNotifier{log: log, comm: hub.comm, servers: hub.servers})

	if err = hub.loadServers(); err != nil {
		return nil, err
	}
	hub.setupGin()

	return hub, nil
}

// Start runs the ticking loop and serves the hub API. It blocks until the
// hub is closed.
func (hub *GuardHub) Start() {
	go hub.startTicking()
	if err := hub.router.Run(hub.conf.Service.GinAddress); err != nil {
		hub.log.Error("api server stopped", "error", err)
	}
}

// Close releases the hub's resources.
func (hub *GuardHub) Close() error {
	close(hub.c)
	sentry.Flush(time.Second * 2)
	return hub.store.Close()
}

// loadLocales registers all the locales active on the hub.
func (hub *GuardHub) loadLocales() error {
	path := hub.conf.GuardHub.LocalePath
	locales := []language.Tag{
		language.English,
	}
	for _, l := range locales {
		if err := locale.Register(l, path); err != nil {
			return err
		}
	}
	return nil
}

// loadServers loads all the server configurations from the specified path
// and registers them with the server manager.
func (hub *GuardHub) loadServers() error {
	path := hub.conf.GuardHub.ServerPath
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	cfgs, err := srv.ReadAll(path)
	if err != nil {
		return err
	}

	for _, cfg := range cfgs {
		hub.servers.Register(
			srv.NewServer(hub.log, cfg),
		)
	}

	hub.servers.UpdateAll()
	return nil
}

// startTicking begins the periodic ticking process for the hub. Server
// statuses are refreshed every ten seconds; each answering server gets its
// queued mute events, if any, flushed through the reachability callback.
func (hub *GuardHub) startTicking() {
	t := time.NewTicker(time.Second * 1)
	defer t.Stop()

	var counter int
	f := func(n int) bool {
		return counter%n == 0
	}

	for {
		select {
		case <-hub.c:
			return
		case <-t.C:
			counter++

			if f(10) {
				hub.servers.UpdateAll()
			}
		}
	}
}

// muteNotifier bridges punishment lifecycle changes into the replication
// channel, fanning each change out to every registered server.
type muteNotifier struct {
	log     *slog.Logger
	comm    *replication.Communicator
	servers *srv.Manager
}

// MuteAdded ...
func (n *muteNotifier) MuteAdded(p *punishment.Punishment) {
	n.publish(p, replication.EventAdd)
}

// MuteRemoved ...
func (n *muteNotifier) MuteRemoved(p *punishment.Punishment) {
	n.publish(p, replication.EventRemove)
}

// MuteUpdated ...
func (n *muteNotifier) MuteUpdated(p *punishment.Punishment) {
	n.publish(p, replication.EventUpdate)
}

// publish ...
func (n *muteNotifier) publish(p *punishment.Punishment, kind replication.EventKind) {
	ev := replication.MuteEvent{
		PlayerID:     p.PlayerID(),
		Reason:       p.Reason(),
		Expiration:   p.Duration().ExpirationMillis(),
		Kind:         kind,
		PunishmentID: p.ID(),
	}
	destinations := make([]string, 0, len(n.servers.All()))
	for identifier := range n.servers.All() {
		destinations = append(destinations, identifier)
	}
	if err := n.comm.Publish(ev, destinations); err != nil {
		n.log.Error("failed to publish mute event", "kind", kind.String(), "punishment", p.ID(), "error", err)
		sentry.CaptureException(err)
	}
}
