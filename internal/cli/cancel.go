package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending or running work unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/work/"+args[0]+"/cancel", nil)
			if err != nil {
				return err
			}
			var out struct {
				State string `json:"state"`
			}
			if err := json.Unmarshal(resp.Data, &out); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.State)
			return nil
		},
	}
	return cmd
}
