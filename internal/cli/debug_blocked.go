package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDebugBlockedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug-blocked",
		Short: "List pending work units and why they aren't dispatching",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/debug/blocked")
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
	return cmd
}
