package replication

import (
	"log/slog"
	"sync"
)

// Transport delivers a named-channel payload to a specific destination. Send
// returns an error when the destination cannot currently be reached; the
// communicator turns that into queueing, never into an error for its caller.
type Transport interface {
	Send(destination, channel string, payload []byte) error
}

// Communicator runs on the proxy and fans mute events out to all downstream
// servers. Events that cannot be delivered are queued per destination and
// flushed, in order, once the destination becomes reachable again.
type Communicator struct {
	log       *slog.Logger
	transport Transport

	mu     sync.Mutex
	queues map[string]*destinationQueue
}

// destinationQueue holds the undelivered events of a single destination. Its
// mutex serializes appends and drains for that destination, which guarantees
// the FIFO removal invariant. A queue marked dead has been removed from the
// map and must not be appended to.
type destinationQueue struct {
	mu     sync.Mutex
	events []MuteEvent
	dead   bool
}

// NewCommunicator ...
func NewCommunicator(log *slog.Logger, transport Transport) *Communicator {
	return &Communicator{
		log:       log,
		transport: transport,
		queues:    make(map[string]*destinationQueue),
	}
}

// Publish attempts to transmit the event to every given destination
// immediately. A destination that cannot be reached gets the event appended
// to its delivery queue instead; transmission failures are therefore not
// errors. A serialization failure is escalated, as it indicates a defect.
func (c *Communicator) Publish(ev MuteEvent, destinations []string) error {
	payload, err := ev.Marshal()
	if err != nil {
		return err
	}
	for _, destination := range destinations {
		if err := c.transport.Send(destination, ChannelName, payload); err != nil {
			c.log.Debug("queueing mute event for unreachable server",
				"destination", destination, "kind", ev.Kind.String(), "punishment", ev.PunishmentID)
			c.enqueue(destination, ev)
		}
	}
	return nil
}

// OnReachable drains the delivery queue of a destination that has newly
// become reachable. Events are sent in FIFO order; the drain stops at the
// first transmission failure and the remainder stays queued.
func (c *Communicator) OnReachable(destination string) {
	c.mu.Lock()
	queue, ok := c.queues[destination]
	c.mu.Unlock()
	if !ok {
		return
	}

	queue.mu.Lock()
	for len(queue.events) > 0 {
		ev := queue.events[0]
		payload, err := ev.Marshal()
		if err != nil {
			// Defective events cannot ever be sent; drop instead of
			// blocking the queue forever.
			c.log.Error("dropping unserializable mute event", "destination", destination, "error", err)
			queue.events = queue.events[1:]
			continue
		}
		if err := c.transport.Send(destination, ChannelName, payload); err != nil {
			c.log.Debug("server became unreachable during queue flush",
				"destination", destination, "remaining", len(queue.events))
			break
		}
		queue.events = queue.events[1:]
	}
	empty := len(queue.events) == 0
	queue.mu.Unlock()

	if empty {
		c.remove(destination, queue)
	}
}

// Queued returns the number of undelivered events for a destination.
func (c *Communicator) Queued(destination string) int {
	c.mu.Lock()
	queue, ok := c.queues[destination]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.events)
}

// enqueue appends the event to the destination's queue, creating it when
// absent. A queue removed between the lookup and the append is detected via
// its dead flag, in which case the lookup is retried.
func (c *Communicator) enqueue(destination string, ev MuteEvent) {
	for {
		c.mu.Lock()
		queue, ok := c.queues[destination]
		if !ok {
			queue = &destinationQueue{}
			c.queues[destination] = queue
		}
		c.mu.Unlock()

		queue.mu.Lock()
		if queue.dead {
			queue.mu.Unlock()
			continue
		}
		queue.events = append(queue.events, ev)
		queue.mu.Unlock()
		return
	}
}

// remove deletes a destination's queue entry, but only if it is still empty:
// a concurrent Publish may have appended to it in the meantime. An empty
// queue is never kept around.
func (c *Communicator) remove(destination string, queue *destinationQueue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.events) == 0 && c.queues[destination] == queue {
		queue.dead = true
		delete(c.queues, destination)
	}
}
