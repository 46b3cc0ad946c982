// Command covec compiles and evaluates constraint manifests.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ezachrisen/cove/cmd/covec/commands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Set with -ldflags at build time.
var Version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version); err != nil {
		log.Error().Err(err).Msg("covec failed")
		os.Exit(1)
	}
}
