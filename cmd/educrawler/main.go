// Package main is the entry point for the educrawler CLI.
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/jmylchreest/educrawler/cmd/educrawler/commands"
	"github.com/jmylchreest/educrawler/internal/version"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		commands.NewRootCmd(),
		fang.WithVersion(version.String()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
