// Package main provides docstore, a single-file JSON document store CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/calvinalkan/docstore/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := &cli.IO{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}

	os.Exit(cli.Run(ctx, o, os.Args))
}
