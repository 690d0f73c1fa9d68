package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var state string
	var task string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work units, optionally filtered by state or task",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			if task != "" {
				q.Set("task", task)
			}
			path := "/api/v1/work/"
			if enc := q.Encode(); enc != "" {
				path += "?" + enc
			}

			resp, err := client.Get(path)
			if err != nil {
				return err
			}
			pretty, err := json.MarshalIndent(resp.Data, "", "  ")
			if err != nil {
				return fmt.Errorf("format response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "filter by work state")
	cmd.Flags().StringVar(&task, "task", "", "filter by task name")
	return cmd
}
