// Package statscmder provides the stats command for inspecting
// working-memory occupancy.
package statscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/meridianlabs/mnemo/api"
	"github.com/meridianlabs/mnemo/pkg/cliui"
	"github.com/meridianlabs/mnemo/pkg/config"
	"github.com/meridianlabs/mnemo/pkg/session"
)

type statsCommander struct {
	apiTarget string
}

const statsLongDesc string = `Show working-memory occupancy on a running mnemo server.

Examples:
  mnemo stats
  mnemo stats --api-target http://localhost:8082`

const statsShortDesc string = "Show working-memory occupancy"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("api-target") {
				return nil
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.apiTarget = cfg.Client.APITarget
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "mnemo API server URL")

	return cmd
}

func (c *statsCommander) run() error {
	stats, err := StatsAPI(c.apiTarget)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s\n\n", cliui.KeyStyle.Render("Working memory"))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("sessions:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", stats.Total)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("capacity:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", stats.Max)))
	fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("utilization:"), cliui.ValueStyle.Render(fmt.Sprintf("%.1f%%", stats.Utilization*100)))

	return nil
}

// StatsAPI fetches session store occupancy from a running server.
func StatsAPI(apiTarget string) (*session.Stats, error) {
	resp, err := http.Get(apiTarget + "/sessions/stats")
	if err != nil {
		return nil, fmt.Errorf("calling stats API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading stats response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("stats API: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("stats API returned status %d", resp.StatusCode)
	}

	var stats session.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("decoding stats response: %w", err)
	}

	return &stats, nil
}
