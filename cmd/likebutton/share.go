package main

import (
	"github.com/spf13/cobra"
)

func newShareCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "share <super-like-id>",
		Short: "Look up a shared super like",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.env(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			info, err := e.client.GetSuperLikeInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}
