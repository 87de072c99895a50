package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/rumor-spread-service/pkg/seeding"
)

func newStrategiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List wise-node seeding strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if jsonOut {
				return json.NewEncoder(out).Encode(seeding.Descriptions)
			}
			for _, name := range seeding.Builtin() {
				fmt.Fprintf(out, "%-12s %s\n", name, seeding.Descriptions[name])
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}
