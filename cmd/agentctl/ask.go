package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"site-research-be/pkg/agent"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	askCmd.Flags().StringP("thread", "t", agent.DefaultThreadID, "Conversation thread id")
	askCmd.Flags().BoolP("json", "j", false, "Output the result as JSON")
	askCmd.Flags().BoolP("stream", "s", false, "Print each node's state as it completes")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the agent a question",
	Example: `
# One-off question
agentctl ask "What services do you offer?"

# Follow-up on the same thread
agentctl ask -t demo "Where is the office?"
agentctl ask -t demo "And the opening hours?"
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		asJSON, _ := cmd.Flags().GetBool("json")
		stream, _ := cmd.Flags().GetBool("stream")
		query := strings.Join(args, " ")

		core, cleanup, err := openCore()
		if err != nil {
			return err
		}
		defer cleanup()

		var res *agent.Result
		if stream {
			res, err = core.Agent.Stream(cmd.Context(), query, threadID, func(s agent.SessionState) error {
				color.Cyan("· %-12s iteration=%d evidence=%d sufficient=%t", s.Phase, s.Iterations, len(s.Evidence), s.IsSufficient)
				return nil
			})
		} else {
			res, err = core.Agent.Run(cmd.Context(), query, threadID)
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Println(res.Answer)
		fmt.Println()
		color.Yellow("Iterations: %d  Evidence: %d", res.Iterations, len(res.Evidence))
		seen := map[string]bool{}
		for _, e := range res.Evidence {
			if seen[e.Source] {
				continue
			}
			seen[e.Source] = true
			color.Blue("  %s", e.Source)
		}
		return nil
	},
}
