package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var task string
	var paramsJSON string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a work unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return fmt.Errorf("--task is required")
			}
			params := map[string]any{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid --params JSON: %w", err)
				}
			}

			resp, err := client.Post("/api/v1/work/", map[string]any{"task": task, "params": params})
			if err != nil {
				return err
			}

			var out struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(resp.Data, &out); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task name to submit")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "JSON object of task params")
	return cmd
}
