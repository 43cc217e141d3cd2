package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/cortex/internal/http"
	"github.com/fyrsmithlabs/cortex/internal/tension"
)

func (c *cli) patternCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pattern",
		Short: "Show the tension that dominates recent sessions",
		Long: `Show the core tension that dominates your recent sessions, if any.

A pattern needs at least three sessions and a tension that appears at least
twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.PatternResponse
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/api/v1/patterns/core-tension", nil, nil, &resp); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !resp.Found {
				fmt.Fprintln(w, mutedStyle.Render("No recurring tension yet"))
				return nil
			}
			fmt.Fprintf(w, "Recurring tension: %s\n", tensionStyle.Render(resp.CoreTension))
			return nil
		},
	}
}

func (c *cli) driftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Show whether your dominant tension has shifted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.DriftResponse
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/api/v1/patterns/drift", nil, nil, &resp); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !resp.Found || resp.Drift == nil {
				fmt.Fprintln(w, mutedStyle.Render("Not enough sessions to detect drift"))
				return nil
			}

			d := resp.Drift
			if d.Status == tension.DriftShifted {
				fmt.Fprintf(w, "Shifted from %s to %s\n", tensionStyle.Render(d.Earlier), tensionStyle.Render(d.Recent))
				return nil
			}
			fmt.Fprintf(w, "Stable around %s\n", tensionStyle.Render(d.Earlier))
			return nil
		},
	}
}
