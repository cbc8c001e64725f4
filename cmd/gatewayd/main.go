package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/readmd/gateway/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:  "gatewayd",
		Usage: "Markdown conversion gateway: converts web pages, documents, feeds, and videos into clean Markdown",
		Commands: []*cli.Command{
			runHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("command execution failed: %v", err)
		os.Exit(1)
	}
}
