package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/cortex/internal/journal"
	"github.com/fyrsmithlabs/cortex/internal/reflection"
	"github.com/fyrsmithlabs/cortex/internal/tension"
)

// mapFlags are the time filter and cluster threshold shared by the map
// commands.
type mapFlags struct {
	until     string
	threshold int
}

func (f *mapFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.until, "until", "", "only sessions created at or before this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.threshold, "threshold", 0, "minimum edge weight joining a cluster (default from server)")
}

func (f *mapFlags) query() (url.Values, error) {
	q := url.Values{}
	if f.until != "" {
		until, err := parseUntil(f.until, time.Local)
		if err != nil {
			return nil, err
		}
		q.Set("until", until.Format(time.RFC3339Nano))
	}
	if f.threshold < 0 {
		return nil, fmt.Errorf("--threshold must be positive")
	}
	if f.threshold > 0 {
		q.Set("threshold", strconv.Itoa(f.threshold))
	}
	return q, nil
}

// parseUntil accepts RFC3339 or a bare date, read as the last instant of
// that calendar day in loc. Days are not always 24h long across DST changes.
func parseUntil(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --until %q: use RFC3339 or YYYY-MM-DD", v)
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func (c *cli) mapCmd() *cobra.Command {
	var (
		flags  mapFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Show the tension map",
		Long: `Show the tension map: one node per distinct core tension, edges between
tensions from consecutive sessions, and the clusters they form.

Examples:
  cortex map
  cortex map --until 2026-01-31
  cortex map --format dot | dot -Tpng > map.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}

			switch format {
			case "text":
			case reflection.FormatDOT, reflection.FormatJSON:
				q.Set("format", format)
				body, err := c.client.raw(cmd.Context(), http.MethodGet, "/api/v1/tensions/map", q, nil, "")
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(body)
				return err
			default:
				return fmt.Errorf("unknown format %q (want text, json or dot)", format)
			}

			var m journal.TensionMap
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/api/v1/tensions/map", q, nil, &m); err != nil {
				return err
			}
			printMap(cmd.OutOrStdout(), m)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, dot")
	return cmd
}

func printMap(w io.Writer, m journal.TensionMap) {
	if len(m.Nodes) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tensions recorded yet"))
		return
	}

	labels := make(map[string]string, len(m.Nodes))
	header(w, fmt.Sprintf("Tensions (%d)", len(m.Nodes)))
	for _, n := range m.Nodes {
		labels[n.ID] = n.Label
		marker := " "
		if n.IsNew {
			marker = okStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %-40s %3d %s %s\n", marker, n.Label, n.Count, bar(n.Count, 20), activity(string(n.Activity)))
	}

	if len(m.Edges) > 0 {
		fmt.Fprintln(w)
		header(w, fmt.Sprintf("Transitions (%d)", len(m.Edges)))
		for _, e := range m.Edges {
			fmt.Fprintf(w, "  %s → %s %s\n", labels[e.Source], labels[e.Target], mutedStyle.Render(fmt.Sprintf("×%d", e.Weight)))
		}
	}

	if len(m.Clusters) > 0 {
		fmt.Fprintln(w)
		printClusters(w, m.Clusters, labels)
	}
}

func printClusters(w io.Writer, clusters []tension.Cluster, labels map[string]string) {
	header(w, fmt.Sprintf("Clusters (%d)", len(clusters)))
	for _, cl := range clusters {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(cl.ID), mutedStyle.Render(fmt.Sprintf("strength %d", cl.Strength)))
		for _, id := range cl.Nodes {
			label := labels[id]
			if label == "" {
				label = id
			}
			fmt.Fprintf(w, "    • %s\n", label)
		}
	}
}

func (c *cli) clustersCmd() *cobra.Command {
	var flags mapFlags
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Show groups of tensions that keep following each other",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}

			var m journal.TensionMap
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/api/v1/tensions/map", q, nil, &m); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(m.Clusters) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No clusters at this threshold"))
				return nil
			}
			labels := make(map[string]string, len(m.Nodes))
			for _, n := range m.Nodes {
				labels[n.ID] = n.Label
			}
			printClusters(w, m.Clusters, labels)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Show sessions on a timeline from the first to now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var tl tension.Timeline
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/api/v1/timeline", nil, nil, &tl); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(tl.Marks) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No sessions yet"))
				return nil
			}

			const width = 40
			header(w, fmt.Sprintf("Timeline %s → %s",
				tl.Origin.Local().Format("2006-01-02"), tl.Now.Local().Format("2006-01-02")))
			for _, m := range tl.Marks {
				offset := int(m.Position * width)
				if offset >= width {
					offset = width - 1
				}
				if offset < 0 {
					offset = 0
				}
				line := make([]rune, width)
				for i := range line {
					line[i] = '·'
				}
				line[offset] = '●'
				fmt.Fprintf(w, "%s %s %s\n",
					mutedStyle.Render(m.CreatedAt.Local().Format("2006-01-02")),
					string(line),
					tensionStyle.Render(m.CoreTension),
				)
			}
			return nil
		},
	}
}

func (c *cli) reportCmd() *cobra.Command {
	var (
		flags  mapFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a report of your tensions",
		Long: `Export a report covering sessions, patterns, drift and the tension map.

Examples:
  cortex report > tensions.md
  cortex report --format yaml --until 2026-06-30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			q.Set("format", format)

			body, err := c.client.raw(cmd.Context(), http.MethodGet, "/api/v1/report", q, nil, "")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", reflection.FormatMarkdown, "report format: json, yaml, markdown, text, dot")
	return cmd
}
