// Command guardagent runs the mute state sidecar next to a downstream game
// server. The hub pushes mute events to it; the local server asks it whether
// a player may chat.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/frostveil-network/guardhub/guardhub/agent"
)

// init ...
func init() {
	_ = godotenv.Load()
}

// main ...
func main() {
	addr := flag.String("addr", ":8081", "address to serve the agent API on")
	flag.Parse()

	log := slog.Default()
	key := os.Getenv("GUARDHUB_AGENT_KEY")
	if key == "" {
		log.Error("GUARDHUB_AGENT_KEY is not set")
		os.Exit(1)
	}

	service := agent.NewService(log, key)
	if err := service.Start(*addr); err != nil {
		log.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}
