package main

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/sinklog/internal/config"
	"github.com/wayneeseguin/sinklog/pkg/sinklog"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// maxLineSize bounds a single input line
const maxLineSize = 1 << 20

// PipeCommand creates the pipe command
func PipeCommand() *cli.Command {
	return &cli.Command{
		Name:  "pipe",
		Usage: "Log every line read from stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "handler",
				Usage: "Handler to log through",
				Value: sinklog.DefaultHandlerName,
			},
			&cli.StringFlag{
				Name:  "level",
				Usage: "Level of every line (trace, debug, info, warn, error, fatal)",
				Value: "info",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			level, ok := types.ParseLevel(c.String("level"))
			if !ok {
				return errors.Errorf("unknown level %q", c.String("level"))
			}
			return pipeLines(ctx, c.Root().Reader, c.String("config"), c.String("handler"), level)
		},
	}
}

// pipeLines logs each line of in. The source location is "stdin" and the
// line number.
func pipeLines(ctx context.Context, in io.Reader, configPath, ident string, level types.Level) (err error) {
	reg, err := loadRegistry(configPath)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, reg.Close())
	}()

	h, ok := reg.Lookup(ident)
	if !ok {
		return errors.Errorf("handler %s is not configured", ident)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.Log(level, "stdin", "pipe", line, "%s", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading stdin")
	}
	return reg.Flush()
}

// loadRegistry builds the registry described by the configuration file
func loadRegistry(configPath string) (*sinklog.Registry, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}
	reg, err := cfg.NewRegistry()
	if err != nil {
		return nil, errors.Wrap(err, "building registry")
	}
	return reg, nil
}
