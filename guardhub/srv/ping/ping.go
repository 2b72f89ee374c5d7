// Package ping probes Bedrock servers over RakNet and decodes the
// semicolon-separated pong payload.
package ping

import (
	"fmt"

	"github.com/sandertv/go-raknet"
)

// Response holds the fields of an unconnected pong.
type Response struct {
	GameType         string
	MessageOfTheDay  string
	ProtocolVersion  string
	MinecraftVersion string
	PlayerCount      string
	MaxPlayerCount   string
	ServerID         string
}

// Ping ...
func Ping(address string) (Response, error) {
	raw, err := raknet.Ping(address)
	if err != nil {
		return Response{}, err
	}
	frag := splitPong(string(raw))
	if len(frag) < 7 {
		return Response{}, fmt.Errorf("invalid pong data")
	}
	return Response{
		GameType:         frag[0],
		MessageOfTheDay:  frag[1],
		ProtocolVersion:  frag[2],
		MinecraftVersion: frag[3],
		PlayerCount:      frag[4],
		MaxPlayerCount:   frag[5],
		ServerID:         frag[6],
	}, nil
}

// splitPong splits on unescaped semicolons.
func splitPong(s string) []string {
	var runes []rune
	var tokens []string
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\\':
			inEscape = true
		case r == ';':
			tokens = append(tokens, string(runes))
			runes = runes[:0]
		case inEscape:
			inEscape = false
			fallthrough
		default:
			runes = append(runes, r)
		}
	}
	return append(tokens, string(runes))
}
