package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the supportdesk command tree. Running it without a
// subcommand starts the HTTP server.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "supportdesk",
		Short: "Support desk core service",
		Long: `supportdesk runs the support desk API: knowledge base articles,
tickets, live chat sessions and ticket conversations.

Examples:
  supportdesk serve
  supportdesk migrate up
  supportdesk token --company 1 --user 7 --role agent`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := newServeCommand(version)
	root.RunE = serve.RunE
	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newTokenCommand())
	return root
}
