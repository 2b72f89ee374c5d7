package replication

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/frostveil-network/guardhub/guardhub/duration"
)

// fakeTransport records deliveries per destination and fails sends to
// destinations marked offline.
type fakeTransport struct {
	mu        sync.Mutex
	offline   map[string]bool
	delivered map[string][]MuteEvent
	failAfter int // if > 0, fail after that many successful sends per flush window
	sent      int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		offline:   make(map[string]bool),
		delivered: make(map[string][]MuteEvent),
	}
}

func (t *fakeTransport) setOffline(destination string, offline bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offline[destination] = offline
}

func (t *fakeTransport) Send(destination, channel string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channel != ChannelName {
		return errors.New("unexpected channel " + channel)
	}
	if t.offline[destination] {
		return errors.New("destination unreachable")
	}
	if t.failAfter > 0 && t.sent >= t.failAfter {
		return errors.New("destination dropped mid-flush")
	}
	ev, err := DecodeMuteEvent(payload)
	if err != nil {
		return err
	}
	t.delivered[destination] = append(t.delivered[destination], ev)
	t.sent++
	return nil
}

func (t *fakeTransport) deliveredTo(destination string) []MuteEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]MuteEvent(nil), t.delivered[destination]...)
}

func event(playerID, punishmentID uuid.UUID, kind EventKind, reason string) MuteEvent {
	return MuteEvent{
		PlayerID:     playerID,
		Reason:       reason,
		Expiration:   time.Now().Add(time.Hour).UnixMilli(),
		Kind:         kind,
		PunishmentID: punishmentID,
	}
}

func TestPublishDeliversToReachableDestinations(t *testing.T) {
	transport := newFakeTransport()
	c := NewCommunicator(slog.Default(), transport)

	ev := event(uuid.New(), uuid.New(), EventAdd, "spamming")
	if err := c.Publish(ev, []string{"lobby", "survival"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, destination := range []string{"lobby", "survival"} {
		got := transport.deliveredTo(destination)
		if len(got) != 1 || got[0] != ev {
			t.Fatalf("destination %s: delivered %+v", destination, got)
		}
		if c.Queued(destination) != 0 {
			t.Fatalf("destination %s: unexpected queue", destination)
		}
	}
}

func TestQueueFlushPreservesFIFOOrder(t *testing.T) {
	transport := newFakeTransport()
	transport.setOffline("survival", true)
	c := NewCommunicator(slog.Default(), transport)

	playerID, punishmentID := uuid.New(), uuid.New()
	events := []MuteEvent{
		event(playerID, punishmentID, EventAdd, "first"),
		event(playerID, punishmentID, EventUpdate, "second"),
		event(playerID, punishmentID, EventRemove, "third"),
	}
	for _, ev := range events {
		if err := c.Publish(ev, []string{"survival"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if got := c.Queued("survival"); got != 3 {
		t.Fatalf("queued = %d, want 3", got)
	}

	transport.setOffline("survival", false)
	c.OnReachable("survival")

	got := transport.deliveredTo("survival")
	if len(got) != 3 {
		t.Fatalf("delivered %d events, want 3", len(got))
	}
	for i, ev := range events {
		if got[i] != ev {
			t.Fatalf("event %d out of order: got %+v, want %+v", i, got[i], ev)
		}
	}
	if c.Queued("survival") != 0 {
		t.Fatal("queue not emptied after flush")
	}
}

func TestFlushStopsAtFirstFailureAndRequeuesRemainder(t *testing.T) {
	transport := newFakeTransport()
	transport.setOffline("survival", true)
	c := NewCommunicator(slog.Default(), transport)

	playerID := uuid.New()
	first := event(playerID, uuid.New(), EventAdd, "first")
	second := event(playerID, uuid.New(), EventAdd, "second")
	third := event(playerID, uuid.New(), EventAdd, "third")
	for _, ev := range []MuteEvent{first, second, third} {
		_ = c.Publish(ev, []string{"survival"})
	}

	// Let exactly one send through, then fail again.
	transport.mu.Lock()
	transport.offline["survival"] = false
	transport.failAfter = 1
	transport.mu.Unlock()
	c.OnReachable("survival")

	if got := transport.deliveredTo("survival"); len(got) != 1 || got[0] != first {
		t.Fatalf("partial flush delivered %+v", got)
	}
	if got := c.Queued("survival"); got != 2 {
		t.Fatalf("queued after partial flush = %d, want 2", got)
	}

	transport.mu.Lock()
	transport.failAfter = 0
	transport.mu.Unlock()
	c.OnReachable("survival")

	got := transport.deliveredTo("survival")
	if len(got) != 3 || got[1] != second || got[2] != third {
		t.Fatalf("full flush delivered %+v", got)
	}
}

func TestOnReachableWithoutQueueIsNoOp(t *testing.T) {
	transport := newFakeTransport()
	c := NewCommunicator(slog.Default(), transport)
	c.OnReachable("survival")
	if len(transport.deliveredTo("survival")) != 0 {
		t.Fatal("unexpected delivery")
	}
}

func TestConcurrentPublishAndFlush(t *testing.T) {
	transport := newFakeTransport()
	transport.setOffline("survival", true)
	c := NewCommunicator(slog.Default(), transport)

	playerID := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Publish(event(playerID, uuid.New(), EventAdd, "load"), []string{"survival", "lobby"})
		}()
	}
	wg.Wait()

	transport.setOffline("survival", false)
	c.OnReachable("survival")

	total := len(transport.deliveredTo("survival")) + c.Queued("survival")
	if total != 20 {
		t.Fatalf("events lost or duplicated: delivered+queued = %d, want 20", total)
	}
}

func TestMuteEventRoundTrip(t *testing.T) {
	ev := MuteEvent{
		PlayerID:     uuid.New(),
		Reason:       "spamming",
		Expiration:   duration.MaxMillis,
		Kind:         EventUpdate,
		PunishmentID: uuid.New(),
	}
	payload, err := ev.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeMuteEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != ev {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ev)
	}
	if !duration.FromTimestamp(got.Expiration).IsPermanent() {
		t.Fatal("permanent sentinel lost in transit")
	}

	if _, err := DecodeMuteEvent([]byte(`{"type": 9}`)); err == nil {
		t.Fatal("expected error for unknown event kind")
	}
	if _, err := DecodeMuteEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
