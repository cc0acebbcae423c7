package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/poiesic/sibyl"
	"github.com/urfave/cli/v2"
)

func providersCommand() *cli.Command {
	return &cli.Command{
		Name:   "providers",
		Usage:  "List the generation provider chain in fallback order",
		Action: providersAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Probe each provider and report its health",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-provider probe timeout",
				Value: sibyl.DefaultProbeTimeout,
			},
		},
	}
}

func providersAction(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	specs, version := svc.Providers()
	status := make(map[string]string, len(specs))
	if c.Bool("check") {
		report := svc.Health(c.Context, c.Duration("timeout"))
		for _, p := range report.Providers {
			s := p.Status
			if p.Error != "" {
				s += ": " + p.Error
			} else if p.Latency > 0 {
				s += fmt.Sprintf(" (%s)", p.Latency.Round(time.Millisecond))
			}
			status[p.Name] = s
		}
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "PRIORITY\tNAME\tKIND\tMODEL\tENDPOINT\tENABLED")
	if c.Bool("check") {
		fmt.Fprint(tw, "\tSTATUS")
	}
	fmt.Fprintln(tw)
	for _, s := range specs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t", s.Priority, s.Name, s.Kind, s.Model, endpoint(s.BaseURL), s.Enabled)
		if c.Bool("check") {
			fmt.Fprintf(tw, "\t%s", status[s.Name])
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "configuration version %d\n", version)
	return nil
}

func endpoint(url string) string {
	if url == "" {
		return "-"
	}
	return url
}
