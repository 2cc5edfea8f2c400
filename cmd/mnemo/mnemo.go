// Package mnemocmder
package mnemocmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/meridianlabs/mnemo/cmd/mnemo/config"
	distillcmder "github.com/meridianlabs/mnemo/cmd/mnemo/distill"
	promotecmder "github.com/meridianlabs/mnemo/cmd/mnemo/promote"
	searchcmder "github.com/meridianlabs/mnemo/cmd/mnemo/search"
	servecmder "github.com/meridianlabs/mnemo/cmd/mnemo/serve"
	statscmder "github.com/meridianlabs/mnemo/cmd/mnemo/stats"
	versioncmder "github.com/meridianlabs/mnemo/cmd/version"
)

const mnemoLongDesc string = `Mnemo is tiered memory for your agents.

Conversations accumulate in working memory, distill into episodic facts,
and durable knowledge is promoted into semantic memory.

Run the server using:
  mnemo serve          Run the memory API server

Query a running server using:
  mnemo search         Search durable memory
  mnemo distill        Distill a session into episodic facts
  mnemo promote        Run a promotion sweep
  mnemo stats          Show working-memory occupancy`

const mnemoShortDesc string = "Mnemo - Agent Memory"

func NewMnemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mnemo",
		Short: mnemoShortDesc,
		Long:  mnemoLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .mnemo/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(distillcmder.NewDistillCmd())
	cmd.AddCommand(promotecmder.NewPromoteCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
