// Package searchcmder provides the search command for querying memory tiers.
package searchcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/meridianlabs/mnemo/api"
	"github.com/meridianlabs/mnemo/pkg/config"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	verifiedMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓ verified")
)

type searchCommander struct {
	query string
	tier  string
	topK  int
	quiet bool

	apiTarget string
}

const searchLongDesc string = `Search durable memory via the mnemo API.

Searches the semantic tier by default, returning the most relevant facts
for the query text. Use --tier episodic to search recent, unverified
facts instead. Requires a running mnemo server.

Use --quiet to output only fact IDs, one per line, for piping into
other commands.

Examples:
  mnemo search "which database does acme use"
  mnemo search "deployment region" --tier episodic
  mnemo search "compliance deadlines" --top 10
  mnemo search "acme" --quiet`

const searchShortDesc string = "Search durable memory"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(_ *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().StringVarP(&cmder.tier, "tier", "t", "semantic", "Memory tier to search (semantic, episodic)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only fact IDs, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "mnemo API server URL")

	return cmd
}

func (c *searchCommander) run() error {
	output, err := SearchAPI(c.apiTarget, c.query, c.tier, c.topK)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Println(result.Fact.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", output.Query)),
		dimStyle.Render("("+output.Tier+" tier)"),
	)

	for i, result := range output.Results {
		text := result.Fact.Text
		if len(text) > 100 {
			text = text[:97] + "..."
		}
		text = strings.ReplaceAll(text, "\n", " ")

		fmt.Printf("  %s  %s  %s\n",
			rankStyle.Render(fmt.Sprintf("#%d", i+1)),
			scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
			idStyle.Render(result.Fact.ID),
		)
		fmt.Printf("  %s\n", textStyle.Render(text))

		meta := result.Fact.Metadata
		details := []string{fmt.Sprintf("salience %.2f", meta.Salience)}
		if meta.Verified {
			details = append(details, verifiedMark)
		}
		if len(meta.EntityTags) > 0 {
			details = append(details, tagStyle.Render("["+strings.Join(meta.EntityTags, ", ")+"]"))
		}
		fmt.Printf("  %s\n\n", dimStyle.Render(strings.Join(details, "  ")))
	}

	return nil
}

// SearchAPI queries the memory search endpoint on a running server.
func SearchAPI(apiTarget, query, tier string, topK int) (*api.SearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("tier", tier)
	params.Set("top_k", strconv.Itoa(topK))

	resp, err := http.Get(apiTarget + "/memory/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("calling search API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("search API: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var output api.SearchResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	return &output, nil
}
