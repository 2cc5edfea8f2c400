// Package promotecmder provides the promote command for triggering a
// promotion sweep.
package promotecmder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/meridianlabs/mnemo/api"
	"github.com/meridianlabs/mnemo/pkg/cliui"
	"github.com/meridianlabs/mnemo/pkg/config"
	"github.com/meridianlabs/mnemo/pkg/memory/promote"
)

type promoteCommander struct {
	apiTarget string
}

const promoteLongDesc string = `Run a promotion sweep on a running mnemo server.

Scans the episodic tier for facts that cleared the salience, citation,
and age thresholds, and writes verified copies into the semantic tier.
Originals stay in the episodic tier until their TTL expires.

Examples:
  mnemo promote
  mnemo promote --api-target http://localhost:8082`

const promoteShortDesc string = "Promote episodic facts to semantic memory"

func NewPromoteCmd() *cobra.Command {
	cmder := &promoteCommander{}

	cmd := &cobra.Command{
		Use:   "promote",
		Short: promoteShortDesc,
		Long:  promoteLongDesc,
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

func (c *promoteCommander) run() error {
	result, err := PromoteAPI(c.apiTarget)
	if err != nil {
		return err
	}

	mark := cliui.SuccessMark
	if result.Status == promote.StatusError {
		mark = cliui.FailMark
	}

	fmt.Printf("\n  %s %s\n\n", mark, cliui.KeyStyle.Render("promotion sweep"))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("status:"), cliui.ValueStyle.Render(string(result.Status)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("candidates:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", result.FoundCandidates)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("qualified:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", result.Filtered)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("promoted:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", result.Promoted)))

	if result.Err != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("error:"), cliui.DimStyle.Render(result.Err))
	}
	fmt.Println()

	return nil
}

// PromoteAPI triggers a promotion sweep on a running server.
func PromoteAPI(apiTarget string) (*promote.Result, error) {
	resp, err := http.Post(apiTarget+"/memory/promote", "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("calling promote API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading promote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("promote API: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("promote API returned status %d", resp.StatusCode)
	}

	var result promote.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding promote response: %w", err)
	}

	return &result, nil
}
