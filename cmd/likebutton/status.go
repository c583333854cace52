package main

import (
	"github.com/spf13/cobra"

	"github.com/likecoin/likecoin-button/internal/widget"
)

type statusOutput struct {
	ID      string       `json:"id"`
	Creator string       `json:"creator"`
	State   widget.State `json:"state"`
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <liker-id>",
		Short: "Print the viewer state of a button as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.env(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			wd, err := c.openWidget(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			defer shutdown(wd, e.cfg.API.Timeout)
			return printJSON(cmd.OutOrStdout(), statusOutput{
				ID:      wd.ID(),
				Creator: wd.Creator().DisplayName,
				State:   wd.Snapshot(),
			})
		},
	}
}
