package agent

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/frostveil-network/guardhub/guardhub/duration"
	"github.com/frostveil-network/guardhub/guardhub/replication"
)

const testKey = "agent-key"

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(slog.Default(), testKey)
}

func do(t *testing.T, s *Service, method, path string, body []byte, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if key != "" {
		req.Header.Set("authorization", key)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func marshalEvent(t *testing.T, ev replication.MuteEvent) []byte {
	t.Helper()
	payload, err := ev.Marshal()
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return payload
}

func TestRejectsMissingKey(t *testing.T) {
	s := newTestService(t)
	w := do(t, s, http.MethodGet, "/chat/"+uuid.NewString(), nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestChannelDeliversMuteState(t *testing.T) {
	s := newTestService(t)
	playerID, punishmentID := uuid.New(), uuid.New()

	payload := marshalEvent(t, replication.MuteEvent{
		PlayerID:     playerID,
		Reason:       "spam",
		Expiration:   duration.MaxMillis,
		Kind:         replication.EventAdd,
		PunishmentID: punishmentID,
	})
	w := do(t, s, http.MethodPost, "/channel/"+replication.ChannelName, payload, testKey)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/chat/"+playerID.String(), nil, testKey)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Muted  bool   `json:"muted"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Muted || resp.Reason != "spam" {
		t.Fatalf("expected a mute with reason spam, got %+v", resp)
	}

	// Remove lifts the mute; removing twice stays a success.
	remove := marshalEvent(t, replication.MuteEvent{
		PlayerID:     playerID,
		Kind:         replication.EventRemove,
		PunishmentID: punishmentID,
	})
	for i := 0; i < 2; i++ {
		w = do(t, s, http.MethodPost, "/channel/"+replication.ChannelName, remove, testKey)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	}
	w = do(t, s, http.MethodGet, "/chat/"+playerID.String(), nil, testKey)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Muted {
		t.Fatal("expected mute to be lifted")
	}
}

func TestUnknownChannelRejected(t *testing.T) {
	s := newTestService(t)
	w := do(t, s, http.MethodPost, "/channel/guardhub:other", []byte("{}"), testKey)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMalformedPayloadRejected(t *testing.T) {
	s := newTestService(t)
	w := do(t, s, http.MethodPost, "/channel/"+replication.ChannelName, []byte("not json"), testKey)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if s.Cache().Len() != 0 {
		t.Fatal("expected malformed payload not to touch the cache")
	}
}

func TestInvalidUUIDRejected(t *testing.T) {
	s := newTestService(t)
	w := do(t, s, http.MethodGet, "/chat/not-a-uuid", nil, testKey)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
