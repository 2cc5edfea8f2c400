// Package configcmder provides the config command for managing persistent
// mnemo configuration stored in the .mnemo/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent mnemo configuration.

Configuration is stored as config.toml in the .mnemo/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  session.max_sessions, session.ttl_minutes, session.max_turns,
  distill.every_n_turns, distill.window, distill.dedupe_threshold,
  promotion.salience_threshold, promotion.citation_threshold,
  promotion.age_days, promotion.schedule,
  vector_store.provider, vector_store.target, vector_store.dimensions,
  embedding.provider, embedding.target, embedding.model,
  llm.provider, llm.model, llm.target,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  api.listen, client.api_target

Use subcommands to get, set, or list configuration values:
  mnemo config set <key> <value>    Set a configuration value
  mnemo config get <key>            Get a configuration value
  mnemo config list                 List all configuration values

Examples:
  mnemo config set session.ttl_minutes 120
  mnemo config set embedding.model nomic-embed-text
  mnemo config get promotion.salience_threshold
  mnemo config list`

const configShortDesc string = "Manage persistent mnemo configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
