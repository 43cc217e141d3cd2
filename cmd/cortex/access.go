package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/cortex/internal/http"
)

func (c *cli) noteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Read or write the note attached to a tension",
		Long: `Read or write the free-text note attached to a tension node. Node ids are
shown by "cortex map --format json".

Examples:
  cortex note get freedom-vs-security
  cortex note set freedom-vs-security "Shows up every time work gets busy"
  cortex note set freedom-vs-security ""   # delete`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <node-id>",
		Short: "Show a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.NoteResponse
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, notePath(args[0]), nil, nil, &resp); err != nil {
				return err
			}
			if resp.Note == "" {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No note"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Note)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <node-id> <note...>",
		Short: "Replace a note; an empty note deletes it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := strings.Join(args[1:], " ")
			var resp httpserver.NoteResponse
			if err := c.client.doJSON(cmd.Context(), http.MethodPut, notePath(args[0]), nil,
				httpserver.NoteRequest{Note: note}, &resp); err != nil {
				return err
			}
			if resp.Note == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Note deleted")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Note saved")
			return nil
		},
	})
	return cmd
}

func notePath(nodeID string) string {
	return "/api/v1/nodes/" + url.PathEscape(nodeID) + "/note"
}

func (c *cli) inviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <code>",
		Short: "Redeem an invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.InviteResponse
			err := c.client.doJSON(cmd.Context(), http.MethodPost, "/api/v1/invite/"+url.PathEscape(args[0]), nil, nil, &resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Access granted"))
			return nil
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check cortexd server health",
		Long: `Check the health status of the cortexd HTTP server.

Examples:
  cortex health
  cortex health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.HealthResponse
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/health", nil, nil, &resp); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			field(w, "Server Status", resp.Status)
			field(w, "Server URL", c.serverURL)
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show archive counts and access state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.StatusResponse
			if err := c.client.doJSON(cmd.Context(), http.MethodGet, "/api/v1/status", nil, nil, &resp); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			header(w, "cortex "+resp.Version)
			field(w, "Status", resp.Status)
			field(w, "Sessions", resp.Sessions)
			field(w, "Tensions", resp.Tensions)
			access := warnStyle.Render("no")
			if resp.Access {
				access = okStyle.Render("yes")
			}
			field(w, "Access", access)
			if resp.Pattern != "" {
				field(w, "Pattern", tensionStyle.Render(resp.Pattern))
			}
			if t := resp.Telemetry; t != nil {
				field(w, "Telemetry", fmt.Sprintf("healthy=%t degraded=%t", t.Healthy, t.Degraded))
			}
			return nil
		},
	}
}
