package main

import (
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/frostveil-network/guardhub/guardhub"
)

// init ...
func init() {
	_ = godotenv.Load()
}

// main ...
func main() {
	conf, err := guardhub.ReadConfig()
	if err != nil {
		panic(err)
	}

	level, err := guardhub.ParseLogLevel(conf.GuardHub.LogLevel)
	if err != nil {
		panic(err)
	}
	slog.SetLogLoggerLevel(level)
	log := slog.Default()

	hub, err := guardhub.NewGuardHub(log, conf)
	if err != nil {
		panic(err)
	}
	defer hub.Close()

	hub.Start()
}
