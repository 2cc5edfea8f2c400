// Package distillcmder provides the distill command for triggering
// distillation of a working-memory session.
package distillcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/meridianlabs/mnemo/api"
	"github.com/meridianlabs/mnemo/pkg/cliui"
	"github.com/meridianlabs/mnemo/pkg/config"
	"github.com/meridianlabs/mnemo/pkg/memory/distill"
)

type distillCommander struct {
	sessionID string
	apiTarget string
}

const distillLongDesc string = `Distill a working-memory session into episodic facts.

Fetches the session's recent turns, summarizes them, extracts fact
candidates, drops duplicates, and stores what remains in the episodic
tier. Requires a running mnemo server.

Examples:
  mnemo distill sess-42
  mnemo distill sess-42 --api-target http://localhost:8082`

const distillShortDesc string = "Distill a session into episodic facts"

func NewDistillCmd() *cobra.Command {
	cmder := &distillCommander{}

	cmd := &cobra.Command{
		Use:   "distill <session>",
		Short: distillShortDesc,
		Long:  distillLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveAPITarget(cmd, &cmder.apiTarget)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cmder.sessionID = args[0]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "mnemo API server URL")

	return cmd
}

// resolveAPITarget fills target from config unless the flag was set explicitly.
func resolveAPITarget(cmd *cobra.Command, target *string) error {
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

	*target = cfg.Client.APITarget
	return nil
}

func (c *distillCommander) run() error {
	result, err := DistillAPI(c.apiTarget, c.sessionID)
	if err != nil {
		return err
	}

	mark := cliui.SuccessMark
	if result.Status == distill.StatusError {
		mark = cliui.FailMark
	}

	fmt.Printf("\n  %s %s %s\n\n",
		mark,
		cliui.KeyStyle.Render("session"),
		cliui.ValueStyle.Render(result.SessionID),
	)
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("status:"), cliui.ValueStyle.Render(string(result.Status)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("turns used:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", result.TurnsUsed)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("extracted:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", result.FactsExtracted)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("deduped:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", result.FactsDeduped)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("stored:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", result.FactsStored)))

	if result.Err != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("error:"), cliui.DimStyle.Render(result.Err))
	}
	fmt.Println()

	return nil
}

// DistillAPI triggers distillation for the given session on a running server.
func DistillAPI(apiTarget, sessionID string) (*distill.Result, error) {
	endpoint := fmt.Sprintf("%s/memory/distill/%s", apiTarget, url.PathEscape(sessionID))

	resp, err := http.Post(endpoint, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("calling distill API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading distill response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("distill API: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("distill API returned status %d", resp.StatusCode)
	}

	var result distill.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding distill response: %w", err)
	}

	return &result, nil
}
