package srv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadAll(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
	}
	write("lobby.json", `{"name":"Lobby","identifier":"lobby","address":"127.0.0.1:19132","agent_address":"http://127.0.0.1:8081"}`)
	write("survival.json", `{"name":"Survival","identifier":"survival","address":"127.0.0.1:19133","agent_address":"http://127.0.0.1:8082"}`)
	write("notes.txt", "ignored")

	configs, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("failed to read configs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}
}

func TestReadAllMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := ReadAll(dir); err == nil {
		t.Fatal("expected an error for a malformed config")
	}
}

func TestManagerLookup(t *testing.T) {
	m := NewManager(nil, nil)
	m.Register(NewServer(nil, Config{
		Name:         "Lobby",
		Identifier:   "lobby",
		Address:      "127.0.0.1:19132",
		AgentAddress: "http://127.0.0.1:8081",
	}))

	if s := m.FromIdentifier("lobby"); s == nil || s.Name() != "Lobby" {
		t.Fatal("expected to find the lobby server by identifier")
	}
	if s := m.FromName("Lobby"); s == nil || s.AgentAddress() != "http://127.0.0.1:8081" {
		t.Fatal("expected to find the lobby server by name")
	}
	if m.FromIdentifier("missing") != nil {
		t.Fatal("expected nil for an unknown identifier")
	}
	if s := m.FromIdentifier("lobby"); s.Status().Online {
		t.Fatal("expected a fresh server to start offline")
	}
}
