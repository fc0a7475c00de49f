package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wayneeseguin/sinklog/internal/config"
)

func main() {
	app := newApp(os.Stdin, os.Stdout)
	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "sinklog",
		Usage:  "Route log lines through sinklog handlers and sinks",
		Reader: stdin,
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: defaultConfigPath(),
			},
		},
		Commands: []*cli.Command{
			PipeCommand(),
			FormatCommand(),
			DescribeCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}
}

// defaultConfigPath falls back to no file when the user config directory is
// unknown; LoadConfig then returns the built-in configuration.
func defaultConfigPath() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		return ""
	}
	return path
}
