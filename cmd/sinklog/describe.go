package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/sinklog/internal/config"
	"github.com/wayneeseguin/sinklog/pkg/sinklog"
)

// DescribeCommand creates the describe command
func DescribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "describe",
		Usage: "Build the configured registry and show its handlers and sinks",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print sink diagnostics as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) (err error) {
			reg, err := loadRegistry(c.String("config"))
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, reg.Close())
			}()

			out := c.Root().Writer
			if c.Bool("json") {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Describe())
			}
			return describe(out, reg)
		},
	}
}

func describe(out io.Writer, reg *sinklog.Registry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "SINK\tKIND\tTARGET\tCONNECTED")
	for _, info := range reg.Describe() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", info.Name, info.Kind, info.Target, info.Connected)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "HANDLER\tLEVELS\tFORMAT\tSINK")
	for _, ident := range reg.Handlers() {
		h, _ := reg.Lookup(ident)
		for _, rule := range h.Rules() {
			fmt.Fprintf(w, "%s\t%s..%s\t%q\t%s\n", ident, rule.Begin, rule.End, rule.Template.Pattern(), rule.Sink.Describe().Target)
		}
	}
	return w.Flush()
}

// ConfigCommand creates the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return errors.Wrap(err, "loading config")
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = c.Root().Writer.Write(data)
			return err
		},
	}
}
