package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/wayneeseguin/sinklog/internal/buffer"
	"github.com/wayneeseguin/sinklog/pkg/formatters"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// FormatCommand creates the format command
func FormatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Compile a pattern and render a sample record",
		ArgsUsage: "<pattern|@format>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "level",
				Usage: "Level of the sample record",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "message",
				Usage: "Message of the sample record",
				Value: "hello from sinklog",
			},
			&cli.StringFlag{
				Name:  "ident",
				Usage: "Handler ident rendered by %c",
				Value: "sinklog",
			},
			&cli.BoolFlag{
				Name:  "color",
				Usage: "Render %C and %R",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "List the compiled directives instead of rendering",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return errors.New("format takes exactly one pattern argument")
			}
			tpl, err := formatters.NewFactory().Resolve(c.Args().First())
			if err != nil {
				return err
			}

			out := c.Root().Writer
			if c.Bool("explain") {
				return explain(out, tpl)
			}
			level, ok := types.ParseLevel(c.String("level"))
			if !ok {
				return errors.Errorf("unknown level %q", c.String("level"))
			}
			return preview(out, tpl, c.String("ident"), level, c.String("message"), c.Bool("color"))
		},
	}
}

// preview renders one record the way a handler would
func preview(out io.Writer, tpl *formatters.Template, ident string, level types.Level, message string, color bool) error {
	ev := formatters.NewEvent(ident, buffer.DefaultMaxSize)
	ev.Prepare(level, "main.go", "main", 1, "%s", []interface{}{message})
	ev.Color = color

	record := tpl.RenderString(ev)
	if !strings.HasSuffix(record, "\n") {
		record += "\n"
	}
	_, err := io.WriteString(out, record)
	return err
}

func explain(out io.Writer, tpl *formatters.Template) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tTEXT\tMIN\tMAX\tFLAGS")
	for _, d := range tpl.Directives() {
		var flags []string
		if d.LeftAdjust {
			flags = append(flags, "left")
		}
		if d.ZeroPad {
			flags = append(flags, "zero")
		}
		fmt.Fprintf(w, "%s\t%q\t%d\t%d\t%s\n", d.Kind, d.Text, d.MinWidth, d.MaxWidth, strings.Join(flags, ","))
	}
	return w.Flush()
}
