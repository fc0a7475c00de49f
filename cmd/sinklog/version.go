package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Version of the sinklog command
const Version = "0.1.0"

// VersionCommand creates the version command
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, c *cli.Command) error {
			fmt.Fprintln(c.Root().Writer, "sinklog version "+Version)
			return nil
		},
	}
}
