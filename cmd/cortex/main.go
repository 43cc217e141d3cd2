// Package main implements the cortex CLI, a thin client for the cortexd HTTP API.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

const defaultServerURL = "http://localhost:9191"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the full command tree. Every call returns fresh flag
// state.
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "cortex",
		Short: "Journal your thoughts and watch your tensions evolve",
		Long: `cortex is a command-line interface for the cortexd journaling server.

Submit thoughts for analysis, browse past sessions, and explore the map of
recurring tensions built from them.

Examples:
  # Journal a thought
  cortex think "I want to quit my job but I am scared of losing stability"

  # See whether one tension keeps coming back
  cortex pattern

  # Render the tension map as Graphviz
  cortex map --format dot | dot -Tsvg > tensions.svg`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.client = newClient(c.serverURL, c.timeout)
		},
	}

	root.PersistentFlags().StringVar(&c.serverURL, "server", defaultServerURL, "cortexd server URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 60*time.Second, "request timeout")

	root.AddCommand(
		c.thinkCmd(),
		c.sessionsCmd(),
		c.importCmd(),
		c.clearCmd(),
		c.patternCmd(),
		c.driftCmd(),
		c.mapCmd(),
		c.clustersCmd(),
		c.timelineCmd(),
		c.reportCmd(),
		c.noteCmd(),
		c.inviteCmd(),
		c.healthCmd(),
		c.statusCmd(),
	)
	return root
}

// cli carries the persistent flags shared by every command.
type cli struct {
	serverURL string
	timeout   time.Duration
	client    *client
}
