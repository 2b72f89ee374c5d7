package srv

// Status represents the last observed state of a downstream server.
type Status struct {
	Online         bool
	PlayerCount    int
	MaxPlayerCount int
}
