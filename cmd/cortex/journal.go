package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/cortex/internal/http"
	"github.com/fyrsmithlabs/cortex/internal/journal"
)

func (c *cli) thinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "think [thought...]",
		Short: "Submit a thought for analysis",
		Long: `Submit a thought for analysis and record the resulting session.

The thought is read from the arguments, or from stdin when no arguments are
given or the only argument is "-".

Examples:
  cortex think "I keep saying yes to everything and resent it"
  pbpaste | cortex think`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			var res journal.SubmitResult
			if err := c.client.doJSON(cmd.Context(), http.MethodPost, "/api/v1/thoughts", nil,
				httpserver.ThoughtRequest{Text: text}, &res); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, tensionStyle.Render(res.Session.CoreTension))
			fmt.Fprintln(w)
			fmt.Fprintln(w, res.Summary)
			fmt.Fprintln(w)
			if len(res.Conflicts) > 0 {
				header(w, "Conflicts")
				for _, conflict := range res.Conflicts {
					fmt.Fprintf(w, "  • %s\n", conflict.Description)
				}
				fmt.Fprintln(w)
			}
			field(w, "Confidence", fmt.Sprintf("%.0f%%", res.Session.Confidence*100))
			field(w, "Session", mutedStyle.Render(res.Session.ID))
			if res.Redactions > 0 {
				fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d secret(s) were redacted before analysis", res.Redactions)))
			}
			return nil
		},
	}
}

func (c *cli) sessionsCmd() *cobra.Command {
	var (
		chronological bool
		limit         int
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Long: `List recorded sessions, most recent first.

Examples:
  cortex sessions --limit 5
  cortex sessions --chronological`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if chronological {
				query.Set("order", "chronological")
			}

			var resp httpserver.SessionsResponse
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/api/v1/sessions", query, nil, &resp); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(resp.Sessions) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No sessions yet. Try: cortex think \"...\""))
				return nil
			}

			sessions := resp.Sessions
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[:limit]
			}
			header(w, fmt.Sprintf("Sessions (%d of %d)", len(sessions), resp.Count))
			for _, s := range sessions {
				fmt.Fprintf(w, "%s  %s  %s\n",
					mutedStyle.Render(s.CreatedAt.Local().Format("2006-01-02 15:04")),
					tensionStyle.Render(s.CoreTension),
					mutedStyle.Render(fmt.Sprintf("(%.0f%%)", s.Confidence*100)),
				)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&chronological, "chronological", false, "oldest first")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n sessions (0 = all)")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import sessions from a JSON export",
		Long: `Import sessions from a JSON array, as written by "cortex sessions" consumers
or the /api/v1/sessions endpoint. Sessions whose id is already archived are
skipped.

Examples:
  cortex import backup.json
  cat backup.json | cortex import -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
			} else {
				data, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read file %s: %w", args[0], err)
				}
			}
			if len(bytes.TrimSpace(data)) == 0 {
				return fmt.Errorf("no sessions to import")
			}

			body, err := c.client.raw(cmd.Context(), http.MethodPost, "/api/v1/sessions/import", nil,
				bytes.NewReader(data), "application/json")
			if err != nil {
				return err
			}

			var res journal.ImportResult
			if err := decode(body, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s of %d session(s)\n",
				okStyle.Render(strconv.Itoa(res.Added)), res.Received)
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded session",
		Long: `Delete every recorded session. Notes are kept.

Examples:
  cortex clear --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the archive without --yes")
			}
			if err := c.client.doJSON(cmd.Context(), http.MethodDelete, "/api/v1/sessions", nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Archive cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

// readText joins args, or reads stdin when args is empty or "-".
func readText(stdin io.Reader, args []string) (string, error) {
	var text string
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		text = string(data)
	} else {
		text = strings.Join(args, " ")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("nothing to submit")
	}
	return text, nil
}
